package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name   string `yaml:"name"`
	Branch string `yaml:"branch"`
}

func (s *sample) Validate() error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func TestParse_ExpandsEnvWithDefaults(t *testing.T) {
	t.Setenv("POSTDESK_TEST_NAME", "blog")
	var s sample
	err := Parse([]byte("name: ${POSTDESK_TEST_NAME}\nbranch: ${POSTDESK_TEST_BRANCH:-main}\n"), &s)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Name != "blog" || s.Branch != "main" {
		t.Errorf("got %+v", s)
	}
}

func TestParse_RunsValidator(t *testing.T) {
	var s sample
	if err := Parse([]byte("branch: x\n"), &s); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadWithDefaults_MissingFileUsesFallback(t *testing.T) {
	var s sample
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	if err := LoadWithDefaults(missing, []byte("name: fallback\n"), &s); err != nil {
		t.Fatalf("LoadWithDefaults: %v", err)
	}
	if s.Name != "fallback" {
		t.Errorf("name = %q", s.Name)
	}
}

func TestLoadWithDefaults_PrefersFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte("name: from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	var s sample
	if err := LoadWithDefaults(p, []byte("name: fallback\n"), &s); err != nil {
		t.Fatalf("LoadWithDefaults: %v", err)
	}
	if s.Name != "from-file" {
		t.Errorf("name = %q", s.Name)
	}
}
