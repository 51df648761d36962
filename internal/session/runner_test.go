package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qacheck/qacheck/internal/diff"
	"github.com/qacheck/qacheck/internal/models"
	"github.com/qacheck/qacheck/internal/selector"
	"github.com/qacheck/qacheck/internal/store"
)

// fakeReviewer returns scripted results per problem ID.
type fakeReviewer struct {
	results map[string]*models.ReviewResult
	errs    map[string]error
	calls   []string
}

func (f *fakeReviewer) Review(ctx context.Context, pc *selector.ProblemContext) (*models.ReviewResult, error) {
	f.calls = append(f.calls, pc.ProblemID)
	if err := f.errs[pc.ProblemID]; err != nil {
		return nil, err
	}
	if result, ok := f.results[pc.ProblemID]; ok {
		return result, nil
	}
	return &models.ReviewResult{ProblemID: pc.ProblemID, Passed: true}, nil
}

// fakePrompter consumes a scripted queue of actions and records what it was
// shown.
type fakePrompter struct {
	actions []Action
	started []string
	notes   []string
}

func (f *fakePrompter) StartProblem(problemID string, index, total int) {
	f.started = append(f.started, problemID)
}

func (f *fakePrompter) ShowResult(result *models.ReviewResult) {}

func (f *fakePrompter) Decide(sug *models.Suggestion, index, total int) (Action, error) {
	if len(f.actions) == 0 {
		return ActionSkip, nil
	}
	action := f.actions[0]
	f.actions = f.actions[1:]
	return action, nil
}

func (f *fakePrompter) Notify(format string, args ...any) {
	f.notes = append(f.notes, fmt.Sprintf(format, args...))
}

type noopEditor struct{}

func (noopEditor) Edit(path string) error { return nil }

// newProblemDir writes a standard-layout output directory where every
// problem's document reads "v = 5 m/s".
func newProblemDir(t *testing.T, ids ...string) string {
	t.Helper()
	dir := t.TempDir()
	scans := filepath.Join(dir, "scans")
	require.NoError(t, os.MkdirAll(scans, 0o755))
	for _, id := range ids {
		require.NoError(t, os.WriteFile(filepath.Join(scans, id+".tex"), []byte("intro\nv = 5 m/s\noutro\n"), 0o644))
	}
	return dir
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// suggestionFor proposes changing the velocity in the problem's document.
func suggestionFor(id string) models.Suggestion {
	path := "scans/" + id + ".tex"
	return models.Suggestion{
		IssueType:        models.IssueSolutionError,
		FilePath:         path,
		Description:      "wrong velocity",
		Reasoning:        "statement gives 7 m/s",
		Confidence:       0.9,
		OriginalContent:  "v = 5 m/s",
		SuggestedContent: "v = 7 m/s",
		Diff:             diff.Generate("v = 5 m/s", "v = 7 m/s", path, 0),
	}
}

func resultWith(id string, sugs ...models.Suggestion) *models.ReviewResult {
	return &models.ReviewResult{ProblemID: id, Passed: len(sugs) == 0, Suggestions: sugs}
}

func newRunner(st store.Store, rev *fakeReviewer, p *fakePrompter, dir string) *Runner {
	return &Runner{Store: st, Reviewer: rev, Prompter: p, Editor: noopEditor{}, OutputDir: dir}
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("approve applies diff and records decision", func(t *testing.T) {
		dir := newProblemDir(t, "p1")
		st := newTestStore(t)
		rev := &fakeReviewer{results: map[string]*models.ReviewResult{
			"p1": resultWith("p1", suggestionFor("p1")),
		}}
		prompter := &fakePrompter{actions: []Action{ActionApprove}}

		sess, err := st.CreateSession(ctx)
		require.NoError(t, err)

		summary, err := newRunner(st, rev, prompter, dir).Run(ctx, sess, []string{"p1"})
		require.NoError(t, err)
		assert.False(t, summary.Interrupted)

		// The file was patched.
		raw, err := os.ReadFile(filepath.Join(dir, "scans", "p1.tex"))
		require.NoError(t, err)
		assert.Equal(t, "intro\nv = 7 m/s\noutro\n", string(raw))

		// The decision was recorded as version 1.
		versions, err := st.GetVersions(ctx, store.VersionFilter{ProblemID: "p1"})
		require.NoError(t, err)
		require.Len(t, versions, 1)
		assert.Equal(t, 1, versions[0].Version)
		assert.Equal(t, models.StatusApproved, versions[0].Status)
		assert.Equal(t, sess.ID, versions[0].SessionID)

		// The session completed with accurate counters.
		got, err := st.GetSession(ctx, sess.ID)
		require.NoError(t, err)
		require.NotNil(t, got.CompletedAt)
		assert.Equal(t, 1, got.ProblemsReviewed)
		assert.Equal(t, 1, got.SuggestionsMade)
		assert.Equal(t, 1, got.ApprovedCount)
		assert.Empty(t, got.RemainingProblems)
	})

	t.Run("reject records without touching the file", func(t *testing.T) {
		dir := newProblemDir(t, "p1")
		st := newTestStore(t)
		rev := &fakeReviewer{results: map[string]*models.ReviewResult{
			"p1": resultWith("p1", suggestionFor("p1")),
		}}
		prompter := &fakePrompter{actions: []Action{ActionReject}}

		sess, err := st.CreateSession(ctx)
		require.NoError(t, err)
		_, err = newRunner(st, rev, prompter, dir).Run(ctx, sess, []string{"p1"})
		require.NoError(t, err)

		raw, err := os.ReadFile(filepath.Join(dir, "scans", "p1.tex"))
		require.NoError(t, err)
		assert.Contains(t, string(raw), "v = 5 m/s")

		versions, err := st.GetVersions(ctx, store.VersionFilter{ProblemID: "p1"})
		require.NoError(t, err)
		require.Len(t, versions, 1)
		assert.Equal(t, models.StatusRejected, versions[0].Status)
	})

	t.Run("skip leaves no record", func(t *testing.T) {
		dir := newProblemDir(t, "p1")
		st := newTestStore(t)
		rev := &fakeReviewer{results: map[string]*models.ReviewResult{
			"p1": resultWith("p1", suggestionFor("p1")),
		}}
		prompter := &fakePrompter{actions: []Action{ActionSkip}}

		sess, err := st.CreateSession(ctx)
		require.NoError(t, err)
		_, err = newRunner(st, rev, prompter, dir).Run(ctx, sess, []string{"p1"})
		require.NoError(t, err)

		versions, err := st.GetVersions(ctx, store.VersionFilter{ProblemID: "p1"})
		require.NoError(t, err)
		assert.Empty(t, versions)

		got, err := st.GetSession(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.SkippedCount)
	})

	t.Run("review failure skips the problem and continues", func(t *testing.T) {
		dir := newProblemDir(t, "p1", "p2")
		st := newTestStore(t)
		rev := &fakeReviewer{errs: map[string]error{"p1": fmt.Errorf("backend down")}}
		prompter := &fakePrompter{}

		sess, err := st.CreateSession(ctx)
		require.NoError(t, err)
		summary, err := newRunner(st, rev, prompter, dir).Run(ctx, sess, []string{"p1", "p2"})
		require.NoError(t, err)

		assert.False(t, summary.Interrupted)
		assert.Equal(t, []string{"p1", "p2"}, rev.calls)
		assert.Equal(t, 1, summary.Session.ProblemsReviewed)
		assert.NotEmpty(t, prompter.notes)
	})

	t.Run("unloadable problem is reported and skipped", func(t *testing.T) {
		dir := newProblemDir(t, "p2")
		st := newTestStore(t)
		rev := &fakeReviewer{}
		prompter := &fakePrompter{}

		sess, err := st.CreateSession(ctx)
		require.NoError(t, err)
		summary, err := newRunner(st, rev, prompter, dir).Run(ctx, sess, []string{"p_missing", "p2"})
		require.NoError(t, err)

		assert.False(t, summary.Interrupted)
		assert.Equal(t, []string{"p2"}, rev.calls)
	})

	t.Run("approve conflict re-prompts the same suggestion", func(t *testing.T) {
		dir := newProblemDir(t, "p1")
		st := newTestStore(t)

		sug := suggestionFor("p1")
		sug.OriginalContent = "no longer present"
		sug.Diff = diff.Generate("no longer present", "replacement", sug.FilePath, 0)

		rev := &fakeReviewer{results: map[string]*models.ReviewResult{
			"p1": resultWith("p1", sug),
		}}
		prompter := &fakePrompter{actions: []Action{ActionApprove, ActionReject}}

		sess, err := st.CreateSession(ctx)
		require.NoError(t, err)
		summary, err := newRunner(st, rev, prompter, dir).Run(ctx, sess, []string{"p1"})
		require.NoError(t, err)
		assert.False(t, summary.Interrupted)

		// The approve hit a conflict, so the second scripted action decided.
		versions, err := st.GetVersions(ctx, store.VersionFilter{ProblemID: "p1"})
		require.NoError(t, err)
		require.Len(t, versions, 1)
		assert.Equal(t, models.StatusRejected, versions[0].Status)
		assert.Equal(t, 0, summary.Session.ApprovedCount)
	})
}

func TestRunTracksChecks(t *testing.T) {
	ctx := context.Background()

	checkStatuses := func(t *testing.T, st store.Store, dir string, status models.CheckStatus) []string {
		t.Helper()
		ids, err := st.ChecksByStatus(ctx, dir, status)
		require.NoError(t, err)
		return ids
	}

	t.Run("outcomes land in the ledger", func(t *testing.T) {
		dir := newProblemDir(t, "p1", "p2", "p3")
		st := newTestStore(t)
		_, err := st.InitChecks(ctx, dir, []string{"p1", "p2", "p3", "p4"}, false)
		require.NoError(t, err)

		rev := &fakeReviewer{
			results: map[string]*models.ReviewResult{
				"p1": resultWith("p1"), // passes clean
				"p2": resultWith("p2", suggestionFor("p2")),
				"p3": resultWith("p3", suggestionFor("p3")),
			},
			errs: map[string]error{},
		}
		// p2's suggestion is approved, p3's rejected, p4 does not exist on
		// disk and cannot be loaded.
		prompter := &fakePrompter{actions: []Action{ActionApprove, ActionReject}}

		sess, err := st.CreateSession(ctx)
		require.NoError(t, err)

		runner := newRunner(st, rev, prompter, dir)
		runner.TrackChecks = true

		summary, err := runner.Run(ctx, sess, []string{"p1", "p2", "p3", "p4"})
		require.NoError(t, err)
		assert.False(t, summary.Interrupted)

		assert.Equal(t, []string{"p1"}, checkStatuses(t, st, dir, models.CheckPassed))
		assert.Equal(t, []string{"p2"}, checkStatuses(t, st, dir, models.CheckChecked))
		assert.Equal(t, []string{"p3"}, checkStatuses(t, st, dir, models.CheckFailed))
		assert.Equal(t, []string{"p4"}, checkStatuses(t, st, dir, models.CheckSkipped))
	})

	t.Run("review failure marks the problem skipped", func(t *testing.T) {
		dir := newProblemDir(t, "p1")
		st := newTestStore(t)
		_, err := st.InitChecks(ctx, dir, []string{"p1"}, false)
		require.NoError(t, err)

		rev := &fakeReviewer{errs: map[string]error{"p1": fmt.Errorf("backend down")}}
		prompter := &fakePrompter{}

		sess, err := st.CreateSession(ctx)
		require.NoError(t, err)

		runner := newRunner(st, rev, prompter, dir)
		runner.TrackChecks = true

		_, err = runner.Run(ctx, sess, []string{"p1"})
		require.NoError(t, err)

		assert.Equal(t, []string{"p1"}, checkStatuses(t, st, dir, models.CheckSkipped))
	})

	t.Run("ledger untouched without tracking", func(t *testing.T) {
		dir := newProblemDir(t, "p1")
		st := newTestStore(t)
		_, err := st.InitChecks(ctx, dir, []string{"p1"}, false)
		require.NoError(t, err)

		sess, err := st.CreateSession(ctx)
		require.NoError(t, err)

		_, err = newRunner(st, &fakeReviewer{}, &fakePrompter{}, dir).Run(ctx, sess, []string{"p1"})
		require.NoError(t, err)

		assert.Equal(t, []string{"p1"}, checkStatuses(t, st, dir, models.CheckPending))
	})
}

func TestRunQuitAndResume(t *testing.T) {
	ctx := context.Background()
	problems := []string{"p1", "p2", "p3", "p4", "p5"}
	dir := newProblemDir(t, problems...)
	st := newTestStore(t)

	// p3 produces a suggestion; the user quits when it is presented.
	rev := &fakeReviewer{results: map[string]*models.ReviewResult{
		"p3": resultWith("p3", suggestionFor("p3")),
	}}
	prompter := &fakePrompter{actions: []Action{ActionQuit}}

	sess, err := st.CreateSession(ctx)
	require.NoError(t, err)

	summary, err := newRunner(st, rev, prompter, dir).Run(ctx, sess, problems)
	require.NoError(t, err)
	assert.True(t, summary.Interrupted)

	// The quit problem was not finished, so it stays in the remaining set
	// along with everything after it, in the original order.
	saved, err := st.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Nil(t, saved.CompletedAt)
	assert.Equal(t, dir, saved.OutputDir)
	assert.Equal(t, []string{"p3", "p4", "p5"}, saved.RemainingProblems)

	// Resume reviews exactly the remaining problems and completes.
	rev2 := &fakeReviewer{}
	prompter2 := &fakePrompter{}
	summary2, err := newRunner(st, rev2, prompter2, dir).Run(ctx, saved, saved.RemainingProblems)
	require.NoError(t, err)
	assert.False(t, summary2.Interrupted)
	assert.Equal(t, []string{"p3", "p4", "p5"}, rev2.calls)

	final, err := st.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, final.CompletedAt)
	assert.Equal(t, 5, final.ProblemsReviewed)
	assert.Empty(t, final.RemainingProblems)
}

func TestResolveTarget(t *testing.T) {
	dir := newProblemDir(t, "p1")
	vdir := filepath.Join(dir, "variants", "numerical")
	require.NoError(t, os.MkdirAll(vdir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(vdir, "p1.tex"), []byte("variant\n"), 0o644))

	pc, _, err := selector.LoadContext(dir, "p1")
	require.NoError(t, err)

	r := &Runner{OutputDir: dir}

	t.Run("relative path resolves to primary document", func(t *testing.T) {
		assert.Equal(t, pc.DocPath, r.resolveTarget(pc, "scans/p1.tex"))
	})

	t.Run("variant path does not resolve to primary despite shared basename", func(t *testing.T) {
		got := r.resolveTarget(pc, "variants/numerical/p1.tex")
		assert.Equal(t, pc.VariantPaths["numerical"], got)
	})

	t.Run("bare basename falls back to primary", func(t *testing.T) {
		got := r.resolveTarget(pc, filepath.Join("elsewhere", "p1.tex"))
		assert.Equal(t, pc.DocPath, got)
	})
}
