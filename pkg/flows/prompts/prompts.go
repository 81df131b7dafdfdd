// Package prompts is a versioned in-memory store for the prompt templates
// the AI flows run with. Saving lints the template first; key-looking
// content is rejected so credentials never end up inside a prompt body.
package prompts

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Template is one versioned prompt body.
type Template struct {
	Name    string
	Version int
	Body    string
	Meta    map[string]string
}

// Issue describes a lint finding.
type Issue struct {
	Rule    string
	Message string
}

// ErrLintFailed is returned by Save when the template fails lint checks.
var ErrLintFailed = errors.New("prompt template failed lint checks")

var secretMarkers = []string{"aws_secret_access_key", "begin private key", "sk-", "shppa_", "aiza"}

// Lint checks a template before it is stored.
func Lint(tpl Template) []Issue {
	var issues []Issue
	if tpl.Name == "" {
		issues = append(issues, Issue{Rule: "name.required", Message: "name is required"})
	}
	if tpl.Body == "" {
		issues = append(issues, Issue{Rule: "body.required", Message: "body is empty"})
	}
	body := strings.ToLower(tpl.Body)
	for _, m := range secretMarkers {
		if strings.Contains(body, m) {
			issues = append(issues, Issue{Rule: "security.secrets", Message: "body appears to contain credential material"})
			break
		}
	}
	return issues
}

// Store holds templates by name, versions ascending.
type Store struct {
	mu   sync.RWMutex
	data map[string][]Template
}

func NewStore() *Store { return &Store{data: make(map[string][]Template)} }

// Save lints and appends a new version: 1 for a new name, previous+1
// otherwise. On lint failure the findings come back with ErrLintFailed.
func (s *Store) Save(tpl Template) (Template, []Issue, error) {
	if issues := Lint(tpl); len(issues) > 0 {
		return Template{}, issues, ErrLintFailed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	versions := s.data[tpl.Name]
	next := 1
	if len(versions) > 0 {
		next = versions[len(versions)-1].Version + 1
	}
	stored := Template{Name: tpl.Name, Version: next, Body: tpl.Body, Meta: tpl.Meta}
	s.data[tpl.Name] = append(versions, stored)
	return stored, nil, nil
}

// Get retrieves a specific version; version 0 means latest.
func (s *Store) Get(name string, version int) (Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.data[name]
	if len(versions) == 0 {
		return Template{}, false
	}
	if version <= 0 {
		return versions[len(versions)-1], true
	}
	i := sort.Search(len(versions), func(i int) bool { return versions[i].Version >= version })
	if i < len(versions) && versions[i].Version == version {
		return versions[i], true
	}
	return Template{}, false
}

// List returns all versions for a name in ascending order.
func (s *Store) List(name string) []Template {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Template(nil), s.data[name]...)
}

// Diff returns a unified diff between two versions of a template, or the
// empty string when either version does not exist.
func (s *Store) Diff(name string, v1, v2 int) string {
	a, ok1 := s.Get(name, v1)
	b, ok2 := s.Get(name, v2)
	if !ok1 || !ok2 {
		return ""
	}
	return unifiedDiff(a.Body, b.Body)
}

func unifiedDiff(a, b string) string {
	if a == b {
		return ""
	}
	var buf bytes.Buffer
	buf.WriteString("--- a\n+++ b\n")
	al := strings.Split(a, "\n")
	bl := strings.Split(b, "\n")
	i, j := 0, 0
	for i < len(al) || j < len(bl) {
		if i < len(al) && j < len(bl) && al[i] == bl[j] {
			i++
			j++
			continue
		}
		if i < len(al) {
			fmt.Fprintf(&buf, "-%s\n", al[i])
			i++
		}
		if j < len(bl) {
			fmt.Fprintf(&buf, "+%s\n", bl[j])
			j++
		}
	}
	return buf.String()
}
