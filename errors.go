/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// Error taxonomy for the quiz engine. Every inbound event either fully
// succeeds or is rejected with one of these, wrapped with detail via
// fmt.Errorf("%w: ..."). Errors are surfaced only to the originating
// connection, never broadcast.
var (
	errGameNotFound = errors.New("game not found")
	errAccessDenied = errors.New("access denied")
	errInvalidState = errors.New("invalid state")
	errValidation   = errors.New("invalid request")
	errRateLimited  = errors.New("rate limited")
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
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
