package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/snipx/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
//
// Every response carries the generation of the request that produced it so late
// answers to abandoned requests can be recognized and dropped.
type Msg struct {
	kind MsgKind
	gen  uint64
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgShareFetched MsgKind = iota
	MsgReviewReceived
)

type shareFetched struct {
	view *models.SharedSnippetView
	err  error
}

type reviewReceived struct {
	review string
	err    error
}

// shareFetchedMsg is the constructor for [MsgShareFetched]
func shareFetchedMsg(gen uint64, view *models.SharedSnippetView, err error) Msg {
	return Msg{kind: MsgShareFetched, gen: gen, data: shareFetched{view, err}}
}

// reviewReceivedMsg is the constructor for [MsgReviewReceived]
func reviewReceivedMsg(gen uint64, review string, err error) Msg {
	return Msg{kind: MsgReviewReceived, gen: gen, data: reviewReceived{review, err}}
}
