// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// doctor.go - Health checks for a g4chat installation.
//
// Checks performed:
//  1. Config valid      - config file, .env and environment parse and validate
//  2. State file        - readable, owner-only permissions
//  3. Token stored      - a bearer token is present
//  4. Backend reachable - one small authenticated request succeeds
//  5. Archive           - the transcript archive opens and migrates
//
// Exit code is non-zero when any check fails.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jeranaias/g4chat/internal/api"
	"github.com/jeranaias/g4chat/internal/config"
	"github.com/jeranaias/g4chat/internal/storage"
)

// doctorTimeout bounds the backend check.
const doctorTimeout = 10 * time.Second

// =============================================================================
// DOCTOR STYLES
// =============================================================================

var (
	checkPassStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	checkWarnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	checkFailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	fixStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true).PaddingLeft(2)
)

// =============================================================================
// HEALTH CHECK TYPES
// =============================================================================

// CheckStatus represents the status of a health check.
type CheckStatus int

const (
	// CheckPass indicates the check passed successfully.
	CheckPass CheckStatus = iota
	// CheckWarn indicates the check passed with warnings.
	CheckWarn
	// CheckFail indicates the check failed.
	CheckFail
)

// String returns the lower-case status name.
func (s CheckStatus) String() string {
	switch s {
	case CheckPass:
		return "pass"
	case CheckWarn:
		return "warn"
	case CheckFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol returns the styled marker for the status.
func (s CheckStatus) Symbol() string {
	switch s {
	case CheckPass:
		return RenderConditional(checkPassStyle, "[OK]")
	case CheckWarn:
		return RenderConditional(checkWarnStyle, "[!!]")
	case CheckFail:
		return RenderConditional(checkFailStyle, "[FAIL]")
	default:
		return "?"
	}
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	Name    string      `json:"name"`
	Status  CheckStatus `json:"-"`
	Message string      `json:"message"`
	Fix     string      `json:"fix,omitempty"` // Suggested command or instruction
}

// Render returns a formatted string representation of the health check.
func (c *HealthCheck) Render() string {
	result := fmt.Sprintf("%s %s", c.Status.Symbol(), c.Message)
	if c.Status != CheckPass && c.Fix != "" {
		result += "\n" + RenderConditional(fixStyle, "-> "+c.Fix)
	}
	return result
}

// DoctorSummary counts the results.
type DoctorSummary struct {
	Passed  int  `json:"passed"`
	Warned  int  `json:"warned"`
	Failed  int  `json:"failed"`
	Healthy bool `json:"healthy"`
}

// doctorCheckJSON is a HealthCheck with its status spelled out.
type doctorCheckJSON struct {
	*HealthCheck
	Status string `json:"status"`
}

// =============================================================================
// DOCTOR COMMAND
// =============================================================================

func newDoctorCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:         "doctor",
		Aliases:     []string{"diag"},
		Short:       "Check configuration, credentials and backend connectivity",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoApp: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := o.configPath
			if path == "" {
				path = config.ConfigPath()
			}
			checks := runAllChecks(cmd.Context(), path, o.baseURL)

			var sum DoctorSummary
			for _, c := range checks {
				switch c.Status {
				case CheckPass:
					sum.Passed++
				case CheckWarn:
					sum.Warned++
				case CheckFail:
					sum.Failed++
				}
			}
			sum.Healthy = sum.Failed == 0

			var failure error
			if sum.Failed > 0 {
				failure = fmt.Errorf("%d health check(s) failed", sum.Failed)
			}

			w := cmd.OutOrStdout()
			if o.jsonMode {
				out := make([]doctorCheckJSON, len(checks))
				for i, c := range checks {
					out[i] = doctorCheckJSON{HealthCheck: c, Status: c.Status.String()}
				}
				data := map[string]any{"checks": out, "summary": sum}
				resp := NewJSONResponse("doctor", data)
				if failure != nil {
					resp = NewJSONErrorResponse("doctor", failure)
					resp.Data = data
				}
				if err := resp.Write(w); err != nil {
					return err
				}
				return failure
			}

			fmt.Fprintln(w, RenderConditional(TitleStyle, "g4chat doctor"))
			fmt.Fprintln(w, RenderConditional(SeparatorStyle, strings.Repeat("=", 41)))
			for _, c := range checks {
				fmt.Fprintln(w, c.Render())
			}
			fmt.Fprintln(w, RenderConditional(SeparatorStyle, strings.Repeat("-", 41)))
			parts := []string{fmt.Sprintf("%d passed", sum.Passed)}
			if sum.Warned > 0 {
				parts = append(parts, RenderConditional(checkWarnStyle, fmt.Sprintf("%d warning", sum.Warned)))
			}
			if sum.Failed > 0 {
				parts = append(parts, RenderConditional(checkFailStyle, fmt.Sprintf("%d failed", sum.Failed)))
			}
			fmt.Fprintln(w, RenderConditional(DimStyle, strings.Join(parts, ", ")))
			return failure
		},
	}
}

// =============================================================================
// HEALTH CHECK FUNCTIONS
// =============================================================================

// runAllChecks runs every check. Checks that need a valid config are
// skipped with a failure when it is not.
func runAllChecks(ctx context.Context, configPath, baseURL string) []*HealthCheck {
	cfgCheck, cfg := checkConfig(configPath, baseURL)
	checks := []*HealthCheck{cfgCheck}
	if cfg == nil {
		return checks
	}

	stateCheck, state := checkStateFile(cfg.Storage.StatePath)
	checks = append(checks, stateCheck)
	if state == nil {
		return checks
	}
	checks = append(checks,
		checkToken(state),
		checkBackend(ctx, cfg, state),
		checkArchive(cfg.Storage.ArchivePath),
	)
	return checks
}

func checkConfig(path, baseURL string) (*HealthCheck, *config.Config) {
	check := &HealthCheck{Name: "config"}
	cfg, err := config.LoadFromPath(path)
	if err == nil && baseURL != "" {
		cfg.API.BaseURL = baseURL
		cfg.SetDefaults()
		err = cfg.Validate()
	}
	if err != nil {
		check.Status = CheckFail
		check.Message = "Config invalid: " + err.Error()
		check.Fix = "g4chat config show, or edit " + path
		return check, nil
	}
	check.Status = CheckPass
	check.Message = "Config valid (backend " + cfg.API.BaseURL + ")"
	return check, cfg
}

func checkStateFile(path string) (*HealthCheck, *storage.State) {
	check := &HealthCheck{Name: "state_file"}
	state, err := storage.OpenState(path)
	if err != nil {
		check.Status = CheckFail
		check.Message = "State file unreadable: " + err.Error()
		check.Fix = "remove " + path + " and run g4chat token set"
		return check, nil
	}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		check.Status = CheckPass
		check.Message = "State file not created yet"
	case err != nil:
		check.Status = CheckWarn
		check.Message = "State file: " + err.Error()
	case runtime.GOOS != "windows" && info.Mode().Perm()&0077 != 0:
		check.Status = CheckWarn
		check.Message = fmt.Sprintf("State file is readable by others (%o)", info.Mode().Perm())
		check.Fix = "chmod 600 " + path
	default:
		check.Status = CheckPass
		check.Message = "State file " + path
	}
	return check, state
}

func checkToken(state *storage.State) *HealthCheck {
	check := &HealthCheck{Name: "token"}
	if !state.HasToken() {
		check.Status = CheckWarn
		check.Message = "No token stored"
		check.Fix = "g4chat token set"
		return check
	}
	check.Status = CheckPass
	check.Message = "Token stored"
	return check
}

func checkBackend(ctx context.Context, cfg *config.Config, state *storage.State) *HealthCheck {
	check := &HealthCheck{Name: "backend"}
	if !state.HasToken() {
		check.Status = CheckWarn
		check.Message = "Backend not checked without a token"
		check.Fix = "g4chat token set"
		return check
	}
	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	client := api.NewClient(cfg.API.BaseURL, state).WithTimeout(cfg.API.Timeout)
	start := time.Now()
	_, err := client.ListSessions(ctx, api.Page{Size: 1}, "")
	switch {
	case err == nil:
		check.Status = CheckPass
		check.Message = fmt.Sprintf("Backend reachable (%s)", time.Since(start).Round(time.Millisecond))
	case errors.Is(err, api.ErrUnauthorized), errors.Is(err, api.ErrForbidden):
		check.Status = CheckFail
		check.Message = "Backend refused the token: " + err.Error()
		check.Fix = "g4chat token set"
	default:
		check.Status = CheckFail
		check.Message = "Backend unreachable: " + err.Error()
		check.Fix = "check api.base_url with g4chat config get api.base_url"
	}
	return check
}

func checkArchive(path string) *HealthCheck {
	check := &HealthCheck{Name: "archive"}
	if path == "" {
		check.Status = CheckWarn
		check.Message = "No archive configured; history is unavailable"
		check.Fix = "g4chat config set storage.archive_path <file>"
		return check
	}
	arch, err := storage.OpenArchive(path)
	if err != nil {
		check.Status = CheckFail
		check.Message = "Archive unusable: " + err.Error()
		return check
	}
	arch.Close()
	check.Status = CheckPass
	check.Message = "Archive " + path
	return check
}
