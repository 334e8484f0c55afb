// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aplane-algo/kestrel/internal/shell"
	"github.com/aplane-algo/kestrel/internal/store"
	"github.com/aplane-algo/kestrel/internal/util"
)

// listSessions prints the most recent runs recorded in the save store.
func listSessions(ctx context.Context, w io.Writer, config util.Config, limit int) int {
	styled := util.NewStyled()
	if config.SaveDB == "" {
		_, _ = fmt.Fprintln(w, "Save data is in-memory; no sessions are recorded.")
		return 0
	}
	st, err := store.Open(config.SaveDB)
	if err != nil {
		reportError(w, styled, err)
		return 1
	}
	defer func() { _ = st.Close() }()

	sessions, err := st.Sessions(ctx, limit)
	if err != nil {
		reportError(w, styled, err)
		return 1
	}
	if len(sessions) == 0 {
		_, _ = fmt.Fprintln(w, "No sessions recorded.")
		return 0
	}

	_, _ = fmt.Fprintf(w, "%-20s %-20s %10s %10s  %s\n", "STARTED", "SCRIPT", "TICKS", "DURATION", "STATUS")
	for _, s := range sessions {
		duration := "running"
		status := s.Status
		if !s.EndedAt.IsZero() {
			duration = s.EndedAt.Sub(s.StartedAt).Round(time.Millisecond).String()
		}
		switch status {
		case shell.StatusOK:
			status = styled.OK(status)
		case "":
		default:
			status = styled.Error(status)
		}
		_, _ = fmt.Fprintf(w, "%-20s %-20s %10d %10s  %s\n",
			s.StartedAt.Local().Format("2006-01-02 15:04:05"), s.Unit, s.Ticks, duration, status)
	}
	return 0
}
