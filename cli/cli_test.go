package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "videostore", cmd.Use)
	assert.True(t, cmd.SilenceUsage)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"serve", "seed", "login", "whoami", "plans", "plan", "rent", "return", "search"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"db", "driver", "log-level", "log-format", "env-file", "login", "password"} {
		require.NotNil(t, cmd.PersistentFlags().Lookup(name), "flag --%s", name)
	}
	assert.Equal(t, "u", cmd.PersistentFlags().Lookup("login").Shorthand)
	assert.Equal(t, "p", cmd.PersistentFlags().Lookup("password").Shorthand)
	assert.Equal(t, ".env", cmd.PersistentFlags().Lookup("env-file").DefValue)
}

func TestSearchCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	searchCmd, _, err := cmd.Find([]string{"search"})
	require.NoError(t, err)

	fast := searchCmd.Flags().Lookup("fast")
	require.NotNil(t, fast)
	assert.Equal(t, "false", fast.DefValue)
}

func TestServeCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	serveCmd, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)

	require.NotNil(t, serveCmd.Flags().Lookup("port"))
	require.NotNil(t, serveCmd.Flags().Lookup("scenario"))
}

// =============================================================================
// END TO END
// =============================================================================

// execute runs the CLI against db and returns what it printed.
func execute(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args,
		"--db", db,
		"--driver", "sqlite",
		"--log-level", "error",
		"--env-file", filepath.Join(t.TempDir(), "missing.env"),
	))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// golden compares console output with testdata/golden/*.golden.
// Regenerate with: go test ./cli -update
func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func seededDB(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "videostore.db")
	out, err := execute(t, db, "seed")
	require.NoError(t, err)
	require.Equal(t, "Loaded scenario classic.\n", out)
	return db
}

func TestSeed_UnknownScenario(t *testing.T) {
	db := filepath.Join(t.TempDir(), "videostore.db")
	_, err := execute(t, db, "seed", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown scenario")
}

func TestWhoami(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, db, "whoami", "--login", "bob", "--password", "password")
	require.NoError(t, err)
	assert.Equal(t, "Hello, Bob Jones! You have 2 out of 2 rentals remaining.\n", out)
}

func TestLogin(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, db, "login", "-u", "alice", "-p", "password")
	require.NoError(t, err)
	assert.Equal(t, "Logged in as Alice Smith (customer 1).\n", out)

	_, err = execute(t, db, "login", "-u", "alice", "-p", "wrong")
	require.Error(t, err)

	_, err = execute(t, db, "whoami")
	require.ErrorIs(t, err, ErrLoginRequired)
}

func TestPlans(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, db, "plans")
	require.NoError(t, err)
	golden(t).Assert(t, "plans", []byte(out))
}

func TestRentReturn(t *testing.T) {
	// GIVEN: Alice on Basic holding movie 1, Carol holding movies 2 and 5
	// WHEN: Renting and returning from the command line
	// THEN: Rejections print the console message, successes print OK

	db := seededDB(t)
	alice := []string{"--login", "alice", "--password", "password"}

	out, err := execute(t, db, append([]string{"rent", "4"}, alice...)...)
	require.NoError(t, err)
	assert.Equal(t, "You have reached the maximum number of rentals for your plan.\n", out)

	out, err = execute(t, db, append([]string{"return", "1"}, alice...)...)
	require.NoError(t, err)
	assert.Equal(t, "OK\n", out)

	out, err = execute(t, db, append([]string{"rent", "2"}, alice...)...)
	require.NoError(t, err)
	assert.Equal(t, "This movie is currently rented by another person.\n", out)

	out, err = execute(t, db, append([]string{"rent", "99"}, alice...)...)
	require.NoError(t, err)
	assert.Equal(t, "Invalid movie id.\n", out)

	out, err = execute(t, db, append([]string{"rent", "4"}, alice...)...)
	require.NoError(t, err)
	assert.Equal(t, "OK\n", out)

	_, err = execute(t, db, append([]string{"rent", "abc"}, alice...)...)
	require.Error(t, err)
}

func TestChoosePlan(t *testing.T) {
	db := seededDB(t)
	carol := []string{"--login", "carol", "--password", "password"}

	out, err := execute(t, db, append([]string{"plan", "1"}, carol...)...)
	require.NoError(t, err)
	assert.Equal(t, "You must return 1 Movie before switching to this plan.\n", out)

	out, err = execute(t, db, append([]string{"plan", "2"}, carol...)...)
	require.NoError(t, err)
	assert.Equal(t, "OK\n", out)

	out, err = execute(t, db, append([]string{"whoami"}, carol...)...)
	require.NoError(t, err)
	assert.Equal(t, "Hello, Carol Nguyen! You have 0 out of 2 rentals remaining.\n", out)

	out, err = execute(t, db, append([]string{"plan", "42"}, carol...)...)
	require.NoError(t, err)
	assert.Equal(t, "Invalid plan id.\n", out)
}

func TestSearch(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, db, "search", "STAR", "--login", "alice", "--password", "password")
	require.NoError(t, err)
	golden(t).Assert(t, "search_star", []byte(out))

	fast, err := execute(t, db, "search", "--fast", "STAR", "--login", "alice", "--password", "password")
	require.NoError(t, err)
	golden(t).Assert(t, "search_star", []byte(fast))
}

func TestSearch_Anonymous(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, db, "search", "raiders")
	require.NoError(t, err)
	assert.Contains(t, out, "ID: 5 NAME: Raiders of the Lost Ark YEAR: 1981\n")
	assert.Contains(t, out, "\t\tStatus: UNAVAILABLE\n")
}
