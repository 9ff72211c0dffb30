package worktree

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"
)

// initTestRepo creates <tmp>/<name> with one commit and returns its path.
func initTestRepo(t *testing.T, name string) string {
	t.Helper()
	parent, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(parent, name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	gitCmd(t, dir, "init")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# test"), 0o644); err != nil {
		t.Fatal(err)
	}
	gitCmd(t, dir, "add", ".")
	gitCmd(t, dir, "commit", "-m", "initial commit")
	return dir
}

func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Test",
		"GIT_AUTHOR_EMAIL=test@test.com",
		"GIT_COMMITTER_NAME=Test",
		"GIT_COMMITTER_EMAIL=test@test.com",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

func TestResolveContext_MainWorkingTree(t *testing.T) {
	repo := initTestRepo(t, "proj")
	sub := filepath.Join(repo, "pkg", "deep")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	c, err := ResolveContext(sub)
	if err != nil {
		t.Fatalf("ResolveContext() error = %v", err)
	}
	if c.Root != repo {
		t.Errorf("Root = %q, want %q", c.Root, repo)
	}
	if c.RepoName != "proj" {
		t.Errorf("RepoName = %q, want proj", c.RepoName)
	}
	if c.IsWorktree || c.CommonGitDir != "" {
		t.Errorf("IsWorktree = %v, CommonGitDir = %q; want main tree", c.IsWorktree, c.CommonGitDir)
	}
	if c.Branch == "" {
		t.Error("Branch is empty")
	}
	if c.GitDir() != filepath.Join(repo, ".git") {
		t.Errorf("GitDir() = %q", c.GitDir())
	}
}

func TestResolveContext_LinkedWorktree(t *testing.T) {
	repo := initTestRepo(t, "proj")
	wt := filepath.Join(filepath.Dir(repo), "proj-feature")
	gitCmd(t, repo, "worktree", "add", "-b", "feature", wt)

	c, err := ResolveContext(wt)
	if err != nil {
		t.Fatalf("ResolveContext() error = %v", err)
	}
	if !c.IsWorktree {
		t.Fatal("IsWorktree = false, want true")
	}
	if c.CommonGitDir != filepath.Join(repo, ".git") {
		t.Errorf("CommonGitDir = %q, want %q", c.CommonGitDir, filepath.Join(repo, ".git"))
	}
	if c.CommonGitDir == c.Root || !filepath.IsAbs(c.CommonGitDir) {
		t.Errorf("CommonGitDir must be absolute and distinct from root, got %q", c.CommonGitDir)
	}
	if c.RepoName != "proj" {
		t.Errorf("RepoName = %q, want proj (main tree basename)", c.RepoName)
	}
	if c.Branch != "feature" {
		t.Errorf("Branch = %q, want feature", c.Branch)
	}
	if c.MainRoot() != repo {
		t.Errorf("MainRoot() = %q, want %q", c.MainRoot(), repo)
	}

	info, err := os.Stat(filepath.Join(c.Root, ".git"))
	if err != nil || !info.Mode().IsRegular() {
		t.Errorf(".git in worktree should be a regular file")
	}
}

func TestResolveContext_NotARepository(t *testing.T) {
	dir := t.TempDir()
	_, err := ResolveContext(dir)
	if !IsKind(err, NotARepository) {
		t.Fatalf("error = %v, want NotARepository", err)
	}
}

func TestResolveContext_BrokenPointer(t *testing.T) {
	dir := t.TempDir()

	os.WriteFile(filepath.Join(dir, ".git"), []byte("gitdir: /nonexistent/.git/worktrees/x\n"), 0o644)
	_, err := ResolveContext(dir)
	if !IsKind(err, BrokenPointer) {
		t.Fatalf("missing target: error = %v, want BrokenPointer", err)
	}

	os.WriteFile(filepath.Join(dir, ".git"), []byte("garbage\n"), 0o644)
	_, err = ResolveContext(dir)
	if !IsKind(err, BrokenPointer) {
		t.Fatalf("garbage pointer: error = %v, want BrokenPointer", err)
	}
	if IsKind(err, NotARepository) {
		t.Error("broken pointer must be distinct from NotARepository")
	}
}

func TestExpandTemplate(t *testing.T) {
	tests := []struct {
		template string
		want     string
	}{
		{"../{repo_name}-worktrees", "/home/u/proj-worktrees"},
		{"~/worktrees/{repo_name}", "/home/u/worktrees/proj"},
		{"/srv/wt/{repo_name}", "/srv/wt/proj"},
		{".worktrees", "/home/u/proj/.worktrees"},
	}
	for _, tt := range tests {
		got := ExpandTemplate(tt.template, "proj", "/home/u/proj", "/home/u")
		if got != tt.want {
			t.Errorf("ExpandTemplate(%q) = %q, want %q", tt.template, got, tt.want)
		}
	}
}

func TestProvision_CreatesWorktreeFromTemplate(t *testing.T) {
	repo := initTestRepo(t, "proj")
	c, err := ResolveContext(repo)
	if err != nil {
		t.Fatal(err)
	}

	spec, err := NewSpec(c, "../{repo_name}-worktrees", "feature-x", true)
	if err != nil {
		t.Fatal(err)
	}
	wantDir := filepath.Join(filepath.Dir(repo), "proj-worktrees", "feature-x")
	if spec.TargetDir != wantDir {
		t.Fatalf("TargetDir = %q, want %q", spec.TargetDir, wantDir)
	}

	res, err := Provision(context.Background(), c, spec)
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if res.Reused {
		t.Error("Reused = true on first provision")
	}
	if !res.IsWorktree || res.Root != wantDir {
		t.Errorf("got Root=%q IsWorktree=%v", res.Root, res.IsWorktree)
	}
	if res.CommonGitDir != filepath.Join(repo, ".git") {
		t.Errorf("CommonGitDir = %q", res.CommonGitDir)
	}
	if res.Branch != "feature-x" {
		t.Errorf("Branch = %q", res.Branch)
	}
}

func TestProvision_ReuseAndConflict(t *testing.T) {
	repo := initTestRepo(t, "proj")
	c, _ := ResolveContext(repo)
	ctx := context.Background()

	spec, _ := NewSpec(c, "../{repo_name}-worktrees", "feature-x", true)
	first, err := Provision(ctx, c, spec)
	if err != nil {
		t.Fatal(err)
	}

	again, err := Provision(ctx, c, spec)
	if err != nil {
		t.Fatalf("repeat Provision() error = %v, want reuse", err)
	}
	if !again.Reused || again.Root != first.Root {
		t.Errorf("repeat Provision() = %+v, want reuse of %s", again, first.Root)
	}

	gitCmd(t, repo, "branch", "existing")
	spec, _ = NewSpec(c, "../{repo_name}-worktrees", "existing", true)
	_, err = Provision(ctx, c, spec)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("error = %v, want ConflictError", err)
	}
	if conflict.Branch != "existing" {
		t.Errorf("conflict branch = %q", conflict.Branch)
	}

	spec.CreateBranch = false
	res, err := Provision(ctx, c, spec)
	if err != nil {
		t.Fatalf("checking out existing branch: %v", err)
	}
	if res.Branch != "existing" {
		t.Errorf("Branch = %q, want existing", res.Branch)
	}
}

func TestProvision_BranchNotFound(t *testing.T) {
	repo := initTestRepo(t, "proj")
	c, _ := ResolveContext(repo)

	spec, _ := NewSpec(c, "../{repo_name}-worktrees", "nope", false)
	_, err := Provision(context.Background(), c, spec)
	if !IsKind(err, BranchNotFound) {
		t.Fatalf("error = %v, want BranchNotFound", err)
	}
}

func TestProvision_DirectoryInUse(t *testing.T) {
	repo := initTestRepo(t, "proj")
	c, _ := ResolveContext(repo)

	spec, _ := NewSpec(c, "../{repo_name}-worktrees", "feature-y", true)
	os.MkdirAll(spec.TargetDir, 0o755)
	os.WriteFile(filepath.Join(spec.TargetDir, "notes.txt"), []byte("x"), 0o644)

	_, err := Provision(context.Background(), c, spec)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("error = %v, want ConflictError", err)
	}
	if conflict.Path != spec.TargetDir {
		t.Errorf("conflict path = %q, want %q", conflict.Path, spec.TargetDir)
	}
}

func TestProvision_RefusesInsideWorktree(t *testing.T) {
	repo := initTestRepo(t, "proj")
	wt := filepath.Join(filepath.Dir(repo), "wt")
	gitCmd(t, repo, "worktree", "add", "-b", "other", wt)
	c, err := ResolveContext(wt)
	if err != nil {
		t.Fatal(err)
	}

	_, err = Provision(context.Background(), c, Spec{Branch: "x", TargetDir: filepath.Join(wt, "x"), CreateBranch: true})
	if !errors.Is(err, ErrInsideWorktree) {
		t.Fatalf("error = %v, want ErrInsideWorktree", err)
	}
}

func TestParseWorktreeList(t *testing.T) {
	out := `worktree /src/proj
HEAD 1111111111111111111111111111111111111111
branch refs/heads/main

worktree /src/proj-worktrees/feature
HEAD 2222222222222222222222222222222222222222
branch refs/heads/feature

worktree /src/proj-worktrees/gone
HEAD 3333333333333333333333333333333333333333
detached
prunable gitdir file points to non-existent location
`
	got := parseWorktreeList(out)
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	if got[1].Path != "/src/proj-worktrees/feature" || got[1].Branch != "feature" {
		t.Errorf("entry 1 = %+v", got[1])
	}
	if got[2].Branch != "" || !got[2].Prunable {
		t.Errorf("entry 2 = %+v, want detached prunable", got[2])
	}
}

func TestGenerateBranchName(t *testing.T) {
	now := time.Date(2026, 1, 14, 9, 30, 12, 0, time.UTC)
	got := GenerateBranchName(now)
	if !regexp.MustCompile(`^ccs-20260114-093012-[0-9a-f]{4}$`).MatchString(got) {
		t.Errorf("GenerateBranchName() = %q", got)
	}
}

func TestSweep(t *testing.T) {
	repo := initTestRepo(t, "proj")
	c, _ := ResolveContext(repo)
	ctx := context.Background()
	base := filepath.Join(filepath.Dir(repo), "proj-worktrees")

	mk := func(branch string) string {
		spec, _ := NewSpec(c, "../{repo_name}-worktrees", branch, true)
		res, err := Provision(ctx, c, spec)
		if err != nil {
			t.Fatal(err)
		}
		return res.Root
	}
	idle := mk("ccs-idle")
	dirty := mk("ccs-dirty")
	busy := mk("ccs-busy")
	os.WriteFile(filepath.Join(dirty, "wip.txt"), []byte("wip"), 0o644)

	decisions, err := Sweep(ctx, c, SweepOptions{
		Base:  base,
		InUse: func(p string) bool { return p == busy },
	})
	if err != nil {
		t.Fatal(err)
	}

	removed := map[string]bool{}
	for _, d := range decisions {
		removed[d.Path] = d.Removed
	}
	if len(decisions) != 3 {
		t.Fatalf("got %d decisions, want 3: %+v", len(decisions), decisions)
	}
	if !removed[idle] || removed[dirty] || removed[busy] {
		t.Errorf("removed = %v", removed)
	}
	if _, err := os.Stat(idle); !os.IsNotExist(err) {
		t.Errorf("idle worktree still exists")
	}
	if _, err := os.Stat(dirty); err != nil {
		t.Errorf("dirty worktree removed: %v", err)
	}
}
