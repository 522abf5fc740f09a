package publisher

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/client"
	"github.com/go-git/go-git/v5/plumbing/transport/file"
	"github.com/go-git/go-git/v5/plumbing/transport/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/foundation/errors"
)

const testBranch = "gh-pages"

type testRemote struct {
	url    string
	repo   *git.Repository
	loader server.MapLoader
	key    string
}

// newRemote serves an empty bare repository over the file:// scheme in-process.
func newRemote(t *testing.T) *testRemote {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, true)
	require.NoError(t, err)

	url := "file://" + filepath.ToSlash(dir)
	ep, err := transport.NewEndpoint(url)
	require.NoError(t, err)

	r := &testRemote{url: url, repo: repo, loader: server.MapLoader{ep.String(): repo.Storer}, key: ep.String()}
	client.InstallProtocol("file", server.NewServer(r.loader))
	t.Cleanup(func() { client.InstallProtocol("file", file.DefaultClient) })
	return r
}

func (r *testRemote) files(t *testing.T) map[string]string {
	t.Helper()
	ref, err := r.repo.Reference(plumbing.NewBranchReferenceName(testBranch), true)
	require.NoError(t, err)
	commit, err := r.repo.CommitObject(ref.Hash())
	require.NoError(t, err)
	tree, err := commit.Tree()
	require.NoError(t, err)

	out := map[string]string{}
	require.NoError(t, tree.Files().ForEach(func(f *object.File) error {
		content, err := f.Contents()
		out[f.Name] = content
		return err
	}))
	return out
}

func (r *testRemote) head(t *testing.T) string {
	t.Helper()
	ref, err := r.repo.Reference(plumbing.NewBranchReferenceName(testBranch), true)
	require.NoError(t, err)
	return ref.Hash().String()
}

func gitInfo(url string) GitInfo {
	return GitInfo{URL: url, Branch: testBranch, Name: "Tester", Email: "tester@example.com", Message: "Publish {{time}}"}
}

var fixedNow = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

func newTestWorker(t *testing.T, opts Options) *Worker {
	t.Helper()
	if opts.Now == nil {
		opts.Now = fixedNow
	}
	opts.Logger = slogDiscard()
	w := NewWorker(filepath.Join(t.TempDir(), "shadow"), opts)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func drain(w *Worker) []Event {
	var out []Event
	for {
		select {
		case ev := <-w.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestPublishToEmptyRemote(t *testing.T) {
	remote := newRemote(t)
	w := newTestWorker(t, Options{EventBuffer: 256})
	ctx := context.Background()

	require.NoError(t, w.InitRepo(ctx, gitInfo(remote.url), AuthInfo{}))
	res, err := w.Publish(ctx, gitInfo(remote.url), AuthInfo{}, Files{
		"index.html":       []byte("<h1>home</h1>"),
		"about/index.html": []byte("about"),
	})
	require.NoError(t, err)
	assert.True(t, res.Pushed)
	assert.Equal(t, []string{"about/index.html", "index.html"}, res.Added)
	assert.Empty(t, res.Removed)
	assert.Equal(t, remote.head(t), res.Commit)
	assert.Equal(t, map[string]string{"index.html": "<h1>home</h1>", "about/index.html": "about"}, remote.files(t))

	commit, err := remote.repo.CommitObject(plumbing.NewHash(res.Commit))
	require.NoError(t, err)
	assert.Equal(t, "Publish 2024-05-01T12:00:00Z", commit.Message)
	assert.Equal(t, "Tester", commit.Author.Name)

	var staged *Progress
	for _, ev := range drain(w) {
		if ev.Progress != nil && ev.Progress.Phase == PhaseStage {
			staged = ev.Progress
		}
	}
	require.NotNil(t, staged)
	assert.Equal(t, Progress{Phase: PhaseStage, Percent: 100, Done: 2, Total: 2}, *staged)
}

func TestPublishRemovesStalePaths(t *testing.T) {
	remote := newRemote(t)
	ctx := context.Background()

	first := newTestWorker(t, Options{})
	require.NoError(t, first.InitRepo(ctx, gitInfo(remote.url), AuthInfo{}))
	_, err := first.Publish(ctx, gitInfo(remote.url), AuthInfo{}, Files{"a": []byte("a"), "b": []byte("b"), "c": []byte("c")})
	require.NoError(t, err)

	// a fresh shadow fetches the branch before publishing over it
	second := newTestWorker(t, Options{})
	require.NoError(t, second.InitRepo(ctx, gitInfo(remote.url), AuthInfo{}))
	res, err := second.Publish(ctx, gitInfo(remote.url), AuthInfo{}, Files{"a": []byte("a2"), "c": []byte("c"), "d": []byte("d")})
	require.NoError(t, err)

	assert.Equal(t, []string{"d"}, res.Added)
	assert.Equal(t, []string{"b"}, res.Removed)
	assert.Equal(t, map[string]string{"a": "a2", "c": "c", "d": "d"}, remote.files(t))
}

func TestPublishReplacesFileWithDirectory(t *testing.T) {
	remote := newRemote(t)
	w := newTestWorker(t, Options{})
	ctx := context.Background()
	require.NoError(t, w.InitRepo(ctx, gitInfo(remote.url), AuthInfo{}))

	_, err := w.Publish(ctx, gitInfo(remote.url), AuthInfo{}, Files{"posts": []byte("old"), "index.html": []byte("i")})
	require.NoError(t, err)

	res, err := w.Publish(ctx, gitInfo(remote.url), AuthInfo{}, Files{"posts/index.html": []byte("new"), "index.html": []byte("i")})
	require.NoError(t, err)
	assert.True(t, res.Pushed)
	assert.Equal(t, []string{"posts/index.html"}, res.Added)
	assert.Equal(t, []string{"posts"}, res.Removed)
	assert.Equal(t, map[string]string{"posts/index.html": "new", "index.html": "i"}, remote.files(t))

	res, err = w.Publish(ctx, gitInfo(remote.url), AuthInfo{}, Files{"posts": []byte("file"), "index.html": []byte("i")})
	require.NoError(t, err)
	assert.True(t, res.Pushed)
	assert.Equal(t, []string{"posts"}, res.Added)
	assert.Equal(t, []string{"posts/index.html"}, res.Removed)
	assert.Equal(t, map[string]string{"posts": "file", "index.html": "i"}, remote.files(t))
}

func TestPublishToChangedRemote(t *testing.T) {
	a := newRemote(t)
	b := newRemote(t)
	b.loader[a.key] = a.repo.Storer
	w := newTestWorker(t, Options{})
	ctx := context.Background()

	require.NoError(t, w.InitRepo(ctx, gitInfo(a.url), AuthInfo{}))
	_, err := w.Publish(ctx, gitInfo(a.url), AuthInfo{}, Files{"index.html": []byte("a")})
	require.NoError(t, err)
	headA := a.head(t)

	_, err = w.Publish(ctx, gitInfo(b.url), AuthInfo{}, Files{"index.html": []byte("b")})
	require.ErrorIs(t, err, ErrNoRepository)
	_, err = b.repo.Reference(plumbing.NewBranchReferenceName(testBranch), true)
	assert.ErrorIs(t, err, plumbing.ErrReferenceNotFound)
	assert.Equal(t, headA, a.head(t))

	other := gitInfo(a.url)
	other.Branch = "pages"
	_, err = w.Publish(ctx, other, AuthInfo{}, Files{"index.html": []byte("b")})
	require.ErrorIs(t, err, ErrNoRepository)

	require.NoError(t, w.InitRepo(ctx, gitInfo(b.url), AuthInfo{}))
	res, err := w.Publish(ctx, gitInfo(b.url), AuthInfo{}, Files{"index.html": []byte("b")})
	require.NoError(t, err)
	assert.True(t, res.Pushed)
	assert.Equal(t, map[string]string{"index.html": "b"}, b.files(t))
	assert.Equal(t, map[string]string{"index.html": "a"}, a.files(t))
}

// runGit runs the git binary with a fixed identity and returns trimmed stdout.
func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	base := []string{"-C", dir, "-c", "user.name=Tester", "-c", "user.email=tester@example.com", "-c", "commit.gpgsign=false"}
	out, err := exec.Command("git", append(base, args...)...).CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
	return strings.TrimSpace(string(out))
}

func TestPublishShallowOverHistory(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	client.InstallProtocol("file", file.DefaultClient)
	t.Cleanup(func() { client.InstallProtocol("file", file.DefaultClient) })

	work := filepath.Join(t.TempDir(), "work")
	runGit(t, t.TempDir(), "init", work)
	runGit(t, work, "symbolic-ref", "HEAD", "refs/heads/"+testBranch)
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, os.WriteFile(filepath.Join(work, name), []byte(name), 0o644))
		runGit(t, work, "add", name)
		runGit(t, work, "commit", "-m", "add "+name)
	}
	bare := filepath.Join(t.TempDir(), "remote.git")
	runGit(t, work, "clone", "--bare", work, bare)

	gi := gitInfo("file://" + filepath.ToSlash(bare))
	gi.Depth = 1
	w := newTestWorker(t, Options{})
	ctx := context.Background()
	require.NoError(t, w.InitRepo(ctx, gi, AuthInfo{}))

	res, err := w.Publish(ctx, gi, AuthInfo{}, Files{"a": []byte("a"), "c": []byte("c"), "d": []byte("d")})
	require.NoError(t, err)
	assert.True(t, res.Pushed)
	assert.Equal(t, []string{"d"}, res.Added)
	assert.Equal(t, []string{"b"}, res.Removed)

	assert.Equal(t, "a\nc\nd", runGit(t, bare, "ls-tree", "-r", "--name-only", testBranch))
	assert.Equal(t, "4", runGit(t, bare, "rev-list", "--count", testBranch))
	assert.Equal(t, res.Commit, runGit(t, bare, "rev-parse", testBranch))
}

func TestPublishSameContentIsNoop(t *testing.T) {
	remote := newRemote(t)
	w := newTestWorker(t, Options{})
	ctx := context.Background()
	files := Files{"index.html": []byte("x")}

	require.NoError(t, w.InitRepo(ctx, gitInfo(remote.url), AuthInfo{}))
	first, err := w.Publish(ctx, gitInfo(remote.url), AuthInfo{}, files)
	require.NoError(t, err)

	second, err := w.Publish(ctx, gitInfo(remote.url), AuthInfo{}, files)
	require.NoError(t, err)
	assert.False(t, second.Pushed)
	assert.Equal(t, first.Commit, second.Commit)
	assert.Empty(t, second.Added)
	assert.Empty(t, second.Removed)
}

func TestPublishRecoversAfterFailedPush(t *testing.T) {
	remote := newRemote(t)
	w := newTestWorker(t, Options{})
	ctx := context.Background()
	files := Files{"index.html": []byte("v1")}

	require.NoError(t, w.InitRepo(ctx, gitInfo(remote.url), AuthInfo{}))

	delete(remote.loader, remote.key)
	_, err := w.Publish(ctx, gitInfo(remote.url), AuthInfo{}, files)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound), "got %v", err)

	remote.loader[remote.key] = remote.repo.Storer
	res, err := w.Publish(ctx, gitInfo(remote.url), AuthInfo{}, files)
	require.NoError(t, err)
	assert.True(t, res.Pushed)
	assert.Equal(t, remote.head(t), res.Commit)
	assert.Equal(t, map[string]string{"index.html": "v1"}, remote.files(t))
}

func TestPublishCanceledDuringGrace(t *testing.T) {
	remote := newRemote(t)
	w := newTestWorker(t, Options{GraceDelay: time.Hour})
	require.NoError(t, w.InitRepo(context.Background(), gitInfo(remote.url), AuthInfo{}))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	_, err := w.Publish(ctx, gitInfo(remote.url), AuthInfo{}, Files{"index.html": []byte("x")})
	require.ErrorIs(t, err, context.Canceled)

	_, err = remote.repo.Reference(plumbing.NewBranchReferenceName(testBranch), true)
	assert.ErrorIs(t, err, plumbing.ErrReferenceNotFound)
}

func TestPublishWithoutInit(t *testing.T) {
	w := newTestWorker(t, Options{})
	_, err := w.Publish(context.Background(), gitInfo("file:///nowhere"), AuthInfo{}, Files{})
	require.ErrorIs(t, err, ErrNoRepository)
	assert.True(t, errors.HasCategory(err, errors.CategoryGit))
}

func TestPublishRejectsGitDirPaths(t *testing.T) {
	remote := newRemote(t)
	w := newTestWorker(t, Options{})
	ctx := context.Background()
	require.NoError(t, w.InitRepo(ctx, gitInfo(remote.url), AuthInfo{}))

	_, err := w.Publish(ctx, gitInfo(remote.url), AuthInfo{}, Files{".git/config": []byte("x")})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestInitRepoAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	w := newTestWorker(t, Options{})
	err := w.InitRepo(context.Background(), gitInfo(srv.URL+"/site.git"), AuthInfo{Username: "token", Password: "bad"})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryAuth), "got %v", err)
	assert.False(t, IsRetryable(err))
}

func TestInitRepoNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/site.git"
	srv.Close()

	w := newTestWorker(t, Options{})
	err := w.InitRepo(context.Background(), gitInfo(url), AuthInfo{})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNetwork), "got %v", err)
	assert.True(t, IsRetryable(err))
}

func TestInitRepoRequiresTarget(t *testing.T) {
	w := newTestWorker(t, Options{})
	err := w.InitRepo(context.Background(), GitInfo{}, AuthInfo{})
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestWorkerClosed(t *testing.T) {
	w := NewWorker(t.TempDir(), Options{Logger: slogDiscard()})
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	err := w.InitRepo(context.Background(), gitInfo("file:///x"), AuthInfo{})
	assert.True(t, errors.HasCategory(err, errors.CategoryRuntime))
	_, open := <-w.Events()
	assert.False(t, open)
}

func TestClassifyGitError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errors.ErrorCategory
	}{
		{"authorization", transport.ErrAuthorizationFailed, errors.CategoryAuth},
		{"authentication", fmt.Errorf("fetch: %w", transport.ErrAuthenticationRequired), errors.CategoryAuth},
		{"not found", transport.ErrRepositoryNotFound, errors.CategoryNotFound},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: stderrors.New("connection refused")}, errors.CategoryNetwork},
		{"hung up", stderrors.New("the remote end hung up unexpectedly: remote hung up"), errors.CategoryNetwork},
		{"other", stderrors.New("object not found in pack"), errors.CategoryGit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyGitError(tt.err, "push", "https://example.com/x.git")
			assert.Equal(t, tt.want, errors.GetCategory(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}

	already := errors.AuthError("nope").Build()
	assert.Same(t, already, classifyGitError(already, "push", ""))
	assert.NoError(t, classifyGitError(nil, "push", ""))
}

func TestExpandMessage(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "Site at 2024-01-02T03:04:05Z", ExpandMessage("Site at {{time}}", now))
	assert.Equal(t, "Publish 2024-01-02T03:04:05Z", ExpandMessage("", now))
	assert.Equal(t, "static", ExpandMessage("static", now))
}

func TestProgressWriter(t *testing.T) {
	var events []Event
	pw := &progressWriter{emit: func(ev Event) { events = append(events, ev) }, op: "push", now: fixedNow}

	_, err := io.WriteString(pw, "Counting objects: 50% (1/2)\rCounting objects: 100% (2/2), done.\nremote: hello")
	require.NoError(t, err)
	pw.flush()

	require.Len(t, events, 3)
	assert.Equal(t, &Progress{Phase: "counting objects", Percent: 50, Done: 1, Total: 2}, events[0].Progress)
	assert.Equal(t, 100, events[1].Progress.Percent)
	require.NotNil(t, events[2].Log)
	assert.Equal(t, "remote: hello", events[2].Log.Message)
}

type recordingPublisher struct {
	subjects []string
	payloads []string
}

func (p *recordingPublisher) Publish(subject string, data []byte) error {
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, string(data))
	return nil
}

func TestNATSRelayForward(t *testing.T) {
	pub := &recordingPublisher{}
	relay := newRelay(pub, "")

	events := make(chan Event, 2)
	events <- Event{Op: "publish", At: fixedNow(), Progress: &Progress{Phase: PhasePush, Percent: 100, Done: 1, Total: 1}}
	events <- Event{Op: "publish", At: fixedNow(), Log: &Log{Message: "Pushed"}}
	close(events)

	relay.Forward(context.Background(), events)
	require.Len(t, pub.payloads, 2)
	assert.Equal(t, []string{DefaultSubject, DefaultSubject}, pub.subjects)
	assert.JSONEq(t, `{"op":"publish","at":"2024-05-01T12:00:00Z","progress":{"phase":"push","percent":100,"done":1,"total":1}}`, pub.payloads[0])
	assert.Contains(t, pub.payloads[1], `"message":"Pushed"`)
	assert.NoError(t, relay.Close())
}
