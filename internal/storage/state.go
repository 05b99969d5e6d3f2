// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/g4chat/internal/util"
)

// StateFileMode is the permission of the state file. It holds a credential.
const StateFileMode = 0600

// Error variables for state operations.
var (
	// ErrNoToken indicates no credential has been stored.
	ErrNoToken = errors.New("no credential stored; run 'g4chat token set'")

	// ErrEmptyProject indicates a link to a blank project name.
	ErrEmptyProject = errors.New("project name is empty")
)

// stateFile is the on-disk shape.
type stateFile struct {
	Token     string            `json:"token,omitempty"`
	Projects  map[string]string `json:"projects,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// State is the persisted client state. It is safe for concurrent use and
// implements the credential source of both the REST client and the stream
// driver.
type State struct {
	path string

	mu   sync.RWMutex
	data stateFile
}

// OpenState loads the state at path. A missing file yields an empty state;
// nothing is written until the first change.
func OpenState(path string) (*State, error) {
	s := &State{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the state file path.
func (s *State) Path() string {
	return s.path
}

// Reload rereads the file, replacing the in-memory state.
func (s *State) Reload() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.mu.Lock()
		s.data = stateFile{}
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}

	var data stateFile
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("parse state %s: %w", s.path, err)
		}
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

// save writes the state. Callers hold s.mu.
func (s *State) save() error {
	s.data.UpdatedAt = time.Now().UTC()
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	if err := util.AtomicWriteFile(s.path, raw, StateFileMode); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// =============================================================================
// CREDENTIAL
// =============================================================================

// Token returns the stored credential, or ErrNoToken.
func (s *State) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data.Token == "" {
		return "", ErrNoToken
	}
	return s.data.Token, nil
}

// HasToken reports whether a credential is stored.
func (s *State) HasToken() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Token != ""
}

// SetToken stores a credential. Surrounding whitespace is dropped.
func (s *State) SetToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrNoToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Token = token
	return s.save()
}

// ClearToken removes the credential.
func (s *State) ClearToken() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Token = ""
	return s.save()
}

// =============================================================================
// PROJECTS
// =============================================================================

// LinkProject assigns a session to a project, replacing any previous link.
func (s *State) LinkProject(sessionID, project string) error {
	project = strings.TrimSpace(project)
	if project == "" {
		return ErrEmptyProject
	}
	if sessionID == "" {
		return errors.New("session id is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Projects == nil {
		s.data.Projects = make(map[string]string)
	}
	s.data.Projects[sessionID] = project
	return s.save()
}

// UnlinkProject removes a session's project link and reports whether one
// existed.
func (s *State) UnlinkProject(sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.Projects[sessionID]; !ok {
		return false, nil
	}
	delete(s.data.Projects, sessionID)
	return true, s.save()
}

// Project returns the project a session is linked to.
func (s *State) Project(sessionID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data.Projects[sessionID]
	return p, ok
}

// ProjectSessions returns the ids of the sessions linked to project, sorted.
func (s *State) ProjectSessions(project string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, p := range s.data.Projects {
		if p == project {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Projects returns a copy of the whole mapping.
func (s *State) Projects() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.data.Projects))
	for k, v := range s.data.Projects {
		out[k] = v
	}
	return out
}
