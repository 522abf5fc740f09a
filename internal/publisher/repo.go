package publisher

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/foundation/errors"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/logfields"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/metrics"
)

// RemoteName is the remote the shadow repository pushes to.
const RemoteName = "origin"

// authMethod returns basic auth for http(s) remotes with credentials, nil otherwise.
func authMethod(url string, ai AuthInfo) transport.AuthMethod {
	if ai.Username == "" && ai.Password == "" {
		return nil
	}
	ep, err := transport.NewEndpoint(url)
	if err != nil || (ep.Protocol != "http" && ep.Protocol != "https") {
		return nil
	}
	return &http.BasicAuth{Username: ai.Username, Password: ai.Password}
}

func branchRefSpec(local, remote, branch string) gitconfig.RefSpec {
	return gitconfig.RefSpec(fmt.Sprintf("+%s%s:%s", local, branch, remote+branch))
}

// ExpandMessage renders a commit message template.
func ExpandMessage(tmpl string, now time.Time) string {
	if tmpl == "" {
		tmpl = "Publish {{time}}"
	}
	return strings.ReplaceAll(tmpl, "{{time}}", now.Format(time.RFC3339))
}

func (w *Worker) initRepo(ctx context.Context, gi GitInfo, ai AuthInfo) error {
	const op = "init"
	if gi.URL == "" || gi.Branch == "" {
		return errors.ConfigError("git url and branch are required").Build()
	}
	w.log(ctx, op, slog.LevelInfo, "Initializing shadow repository", logfields.URL(gi.URL), logfields.Branch(gi.Branch), logfields.Path(w.dir))

	if err := os.RemoveAll(w.dir); err != nil {
		return errors.FileSystemError("remove shadow directory").WithCause(err).WithContext("path", w.dir).Build()
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return errors.FileSystemError("create shadow directory").WithCause(err).WithContext("path", w.dir).Build()
	}

	repo, err := git.PlainInit(w.dir, false)
	if err != nil {
		return errors.GitError("init shadow repository").WithCause(err).Build()
	}
	branchRef := plumbing.NewBranchReferenceName(gi.Branch)
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, branchRef)); err != nil {
		return errors.GitError("point HEAD at branch").WithCause(err).Build()
	}
	if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{Name: RemoteName, URLs: []string{gi.URL}}); err != nil {
		return errors.GitError("add remote").WithCause(err).Build()
	}

	pw := w.sideband(op)
	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: RemoteName,
		RefSpecs:   []gitconfig.RefSpec{branchRefSpec("refs/heads/", "refs/remotes/"+RemoteName+"/", gi.Branch)},
		Depth:      gi.Depth,
		Auth:       authMethod(gi.URL, ai),
		Progress:   pw,
		Force:      true,
	})
	pw.flush()
	switch {
	case err == nil || stderrors.Is(err, git.NoErrAlreadyUpToDate):
	case stderrors.Is(err, git.NoMatchingRefSpecError{}) || stderrors.Is(err, transport.ErrEmptyRemoteRepository):
	default:
		return classifyGitError(err, "fetch", gi.URL)
	}
	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName(RemoteName, gi.Branch), true)
	switch {
	case err == nil:
		if err := repo.Storer.SetReference(plumbing.NewHashReference(branchRef, remoteRef.Hash())); err != nil {
			return errors.GitError("create local branch").WithCause(err).Build()
		}
		w.log(ctx, op, slog.LevelInfo, "Fetched remote branch", logfields.Commit(remoteRef.Hash().String()))
	case stderrors.Is(err, plumbing.ErrReferenceNotFound):
		w.log(ctx, op, slog.LevelInfo, "Remote branch missing, starting it locally", logfields.Branch(gi.Branch))
	default:
		return errors.GitError("resolve fetched branch").WithCause(err).Build()
	}
	w.progress(op, PhaseFetch, 1, 1)

	cfg, err := repo.Config()
	if err != nil {
		return errors.GitError("read repository config").WithCause(err).Build()
	}
	cfg.User.Name = gi.Name
	cfg.User.Email = gi.Email
	cfg.Branches[gi.Branch] = &gitconfig.Branch{Name: gi.Branch, Remote: RemoteName, Merge: branchRef}
	if err := repo.SetConfig(cfg); err != nil {
		return errors.GitError("write repository config").WithCause(err).Build()
	}
	return nil
}

func (w *Worker) publish(ctx context.Context, gi GitInfo, ai AuthInfo, files Files) (res Result, err error) {
	const op = "publish"
	start := time.Now()
	outcome := metrics.OutcomeFailed
	defer func() {
		switch {
		case err == nil && !res.Pushed && len(res.Added)+len(res.Removed) == 0:
			outcome = metrics.OutcomeNoop
		case err == nil:
			outcome = metrics.OutcomeSuccess
		case stderrors.Is(err, context.Canceled):
			outcome = metrics.OutcomeCanceled
		}
		w.opts.Recorder.ObservePublish(time.Since(start), outcome)
		if err == nil {
			w.opts.Recorder.AddPublishedFiles(len(res.Added), len(res.Removed))
		}
	}()

	repo, err := git.PlainOpen(w.dir)
	if err != nil {
		if stderrors.Is(err, git.ErrRepositoryNotExists) {
			return Result{}, errors.GitError("shadow repository not initialized").WithCause(ErrNoRepository).WithContext("path", w.dir).Build()
		}
		return Result{}, errors.GitError("open shadow repository").WithCause(err).Build()
	}
	if err := checkTarget(repo, gi); err != nil {
		w.log(ctx, op, slog.LevelWarn, "Shadow repository targets another remote or branch", logfields.Error(err))
		return Result{}, err
	}

	if w.opts.GraceDelay > 0 {
		w.log(ctx, op, slog.LevelInfo, fmt.Sprintf("Publishing in %s", w.opts.GraceDelay))
		w.progress(op, PhaseGrace, 0, 1)
		timer := time.NewTimer(w.opts.GraceDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			w.log(ctx, op, slog.LevelWarn, "Publish canceled")
			return Result{}, ctx.Err()
		case <-timer.C:
		}
		w.progress(op, PhaseGrace, 1, 1)
	}
	// staging has started; the rest runs to completion
	ctx = context.WithoutCancel(ctx)

	wt, err := repo.Worktree()
	if err != nil {
		return Result{}, errors.GitError("open worktree").WithCause(err).Build()
	}
	branchRef := plumbing.NewBranchReferenceName(gi.Branch)
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, branchRef)); err != nil {
		return Result{}, errors.GitError("point HEAD at branch").WithCause(err).Build()
	}

	previous, err := w.resetToBranch(repo, wt, branchRef)
	if err != nil {
		return Result{}, err
	}
	if err := w.materialize(files); err != nil {
		return Result{}, err
	}

	// drop stale entries before staging; a stale file may share its name with a
	// directory of the new set, or the other way round
	idx, err := repo.Storer.Index()
	if err != nil {
		return Result{}, errors.GitError("read index").WithCause(err).Build()
	}
	for _, p := range sortedKeys(previous) {
		if _, ok := files[p]; ok {
			continue
		}
		if _, err := idx.Remove(p); err != nil && !stderrors.Is(err, index.ErrEntryNotFound) {
			return Result{}, errors.GitError("unstage removed file").WithCause(err).WithContext("path", p).Build()
		}
		res.Removed = append(res.Removed, p)
	}
	if err := repo.Storer.SetIndex(idx); err != nil {
		return Result{}, errors.GitError("write index").WithCause(err).Build()
	}

	paths := sortedKeys(files)
	for i, p := range paths {
		if err := wt.AddWithOptions(&git.AddOptions{Path: p, SkipStatus: true}); err != nil {
			return Result{}, errors.GitError("stage file").WithCause(err).WithContext("path", p).Build()
		}
		if _, ok := previous[p]; !ok {
			res.Added = append(res.Added, p)
		}
		w.progress(op, PhaseStage, i+1, len(paths))
	}

	now := w.opts.Now()
	sig := &object.Signature{Name: gi.Name, Email: gi.Email, When: now}
	hash, err := wt.Commit(ExpandMessage(gi.Message, now), &git.CommitOptions{Author: sig, Committer: sig})
	switch {
	case stderrors.Is(err, git.ErrEmptyCommit):
		w.log(ctx, op, slog.LevelInfo, "Nothing to commit")
		if head, herr := repo.Reference(branchRef, true); herr == nil {
			hash = head.Hash()
		}
	case err != nil:
		return Result{}, errors.GitError("commit").WithCause(err).Build()
	default:
		w.log(ctx, op, slog.LevelInfo, "Committed site", logfields.Commit(hash.String()), slog.Int("added", len(res.Added)), slog.Int("removed", len(res.Removed)))
	}
	w.progress(op, PhaseCommit, 1, 1)
	if !hash.IsZero() {
		res.Commit = hash.String()
	}
	if res.Commit == "" {
		// unborn branch and nothing to publish
		return res, nil
	}

	pw := w.sideband(op)
	err = repo.PushContext(ctx, &git.PushOptions{
		RemoteName: RemoteName,
		RefSpecs:   []gitconfig.RefSpec{branchRefSpec("refs/heads/", "refs/heads/", gi.Branch)},
		Auth:       authMethod(gi.URL, ai),
		Progress:   pw,
		Force:      true,
	})
	pw.flush()
	switch {
	case err == nil:
		res.Pushed = true
		w.log(ctx, op, slog.LevelInfo, "Pushed", logfields.Branch(gi.Branch), logfields.Commit(res.Commit))
	case stderrors.Is(err, git.NoErrAlreadyUpToDate):
		w.log(ctx, op, slog.LevelInfo, "Remote already up to date")
	default:
		return res, classifyGitError(err, "push", gi.URL)
	}
	w.progress(op, PhasePush, 1, 1)
	return res, nil
}

// checkTarget reports ErrNoRepository when the shadow repository was
// initialized for a different remote URL or branch than gi.
func checkTarget(repo *git.Repository, gi GitInfo) error {
	stale := func(reason string) error {
		return errors.GitError("shadow repository "+reason).
			WithCause(ErrNoRepository).
			WithContext("branch", gi.Branch).
			Build()
	}
	remote, err := repo.Remote(RemoteName)
	if err != nil {
		return stale("has no remote")
	}
	if urls := remote.Config().URLs; len(urls) == 0 || urls[0] != gi.URL {
		return stale("targets another remote")
	}
	cfg, err := repo.Config()
	if err != nil {
		return errors.GitError("read repository config").WithCause(err).Build()
	}
	if _, ok := cfg.Branches[gi.Branch]; !ok {
		return stale("targets another branch")
	}
	return nil
}

// resetToBranch makes the index match the branch tip (mixed reset) and returns
// the paths in its tree. An unborn branch yields an empty index.
func (w *Worker) resetToBranch(repo *git.Repository, wt *git.Worktree, branchRef plumbing.ReferenceName) (map[string]struct{}, error) {
	previous := map[string]struct{}{}
	ref, err := repo.Reference(branchRef, true)
	if stderrors.Is(err, plumbing.ErrReferenceNotFound) {
		if err := repo.Storer.SetIndex(&index.Index{Version: 2}); err != nil {
			return nil, errors.GitError("clear index").WithCause(err).Build()
		}
		return previous, nil
	}
	if err != nil {
		return nil, errors.GitError("resolve branch").WithCause(err).Build()
	}
	if err := wt.Reset(&git.ResetOptions{Commit: ref.Hash(), Mode: git.MixedReset}); err != nil {
		return nil, errors.GitError("reset index").WithCause(err).WithContext("commit", ref.Hash().String()).Build()
	}
	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, errors.GitError("read branch commit").WithCause(err).Build()
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, errors.GitError("read branch tree").WithCause(err).Build()
	}
	err = tree.Files().ForEach(func(f *object.File) error {
		previous[f.Name] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, errors.GitError("walk branch tree").WithCause(err).Build()
	}
	return previous, nil
}

// materialize replaces everything but .git in the shadow directory with files.
func (w *Worker) materialize(files Files) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return errors.FileSystemError("read shadow directory").WithCause(err).Build()
	}
	for _, e := range entries {
		if e.Name() == git.GitDirName {
			continue
		}
		if err := os.RemoveAll(filepath.Join(w.dir, e.Name())); err != nil {
			return errors.FileSystemError("clean shadow directory").WithCause(err).WithContext("path", e.Name()).Build()
		}
	}
	for p, content := range files {
		target, err := securejoin.SecureJoin(w.dir, filepath.FromSlash(p))
		if err != nil {
			return errors.FileSystemError("resolve output path").WithCause(err).WithContext("path", p).Build()
		}
		rel, _ := filepath.Rel(w.dir, target)
		if strings.HasPrefix(filepath.ToSlash(rel), git.GitDirName+"/") || rel == git.GitDirName {
			return errors.ValidationError("output path inside .git").WithContext("path", p).Build()
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return errors.FileSystemError("create output directory").WithCause(err).WithContext("path", p).Build()
		}
		if err := os.WriteFile(target, content, 0o644); err != nil {
			return errors.FileSystemError("write output file").WithCause(err).WithContext("path", p).Build()
		}
	}
	return nil
}
