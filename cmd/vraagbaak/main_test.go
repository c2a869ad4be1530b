package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_Version(t *testing.T) {
	assert.NoError(t, Execute("1.0.0", "abc123", "vraagbaak", []string{"--version"}))
}

func TestExecute_Help(t *testing.T) {
	assert.NoError(t, Execute("1.0.0", "abc123", "vraagbaak", []string{"--help"}))
}

func TestExecute_IndexHelp(t *testing.T) {
	assert.NoError(t, Execute("1.0.0", "abc123", "vraagbaak", []string{"index", "--help"}))
}

func TestExecute_InvalidFlag(t *testing.T) {
	assert.Error(t, Execute("1.0.0", "abc123", "vraagbaak", []string{"--invalid-flag"}))
}

func TestExecute_InvalidTransport(t *testing.T) {
	err := Execute("1.0.0", "abc123", "vraagbaak", []string{"--transport", "invalid"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transport")
}

func TestExecute_IndexInvalidTransport(t *testing.T) {
	err := Execute("1.0.0", "abc123", "vraagbaak", []string{"index", "--force", "-t", "invalid"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transport")
}

func TestExecute_IndexRejectsArgs(t *testing.T) {
	assert.Error(t, Execute("1.0.0", "abc123", "vraagbaak", []string{"index", "extra"}))
}

func TestRunMain_Success(t *testing.T) {
	exitCode := -1
	mockExit := func(code int) {
		exitCode = code
	}

	// --help should succeed
	runMain([]string{"vraagbaak", "--help"}, mockExit)

	assert.Equal(t, -1, exitCode, "no exit call for --help")
}

func TestRunMain_Failure(t *testing.T) {
	exitCode := -1
	mockExit := func(code int) {
		exitCode = code
	}

	runMain([]string{"vraagbaak", "--invalid"}, mockExit)

	assert.Equal(t, 1, exitCode)
}
