/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

var (
	ErrNoRoom           = errors.New("room does not exist")
	ErrNoSession        = errors.New("session does not exist")
	ErrNotHost          = errors.New("only the host may do that")
	ErrRoomFull         = errors.New("room is full")
	ErrGameRunning      = errors.New("a game is already running")
	ErrNoGame           = errors.New("no game is running")
	ErrNotEnoughPlayers = fmt.Errorf("at least %d players are needed", minPlayers)
	ErrNotCurrentPlayer = errors.New("it is not your turn to draw")
	ErrIsDrawing        = errors.New("the drawing player cannot start a vote")
	ErrNoProfile        = errors.New("choose a username first")
	ErrUnknownPlayer    = errors.New("player is not in this game")
	ErrHasLost          = errors.New("players who lost cannot do that")
	ErrVoteRunning      = errors.New("a vote is already running")
	ErrNoVote           = errors.New("no vote is running")
	ErrInvalidVote      = errors.New("vote must be yes or no")
	ErrSelfVote         = errors.New("players cannot vote on their own error")
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

// humanReadableSize formats a response size for the serve log lines.
func humanReadableSize(bytes int64) string {
	const unit int64 = 1000
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "kMGTPE"[exp])
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(getFavicon())
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
