package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pysugar/codex-profiles/internal/authfile"
	"github.com/pysugar/codex-profiles/internal/config"
	"github.com/pysugar/codex-profiles/internal/profile"
	"github.com/pysugar/codex-profiles/internal/server"
	"github.com/pysugar/codex-profiles/internal/state"
	"github.com/pysugar/codex-profiles/internal/storage"
	"github.com/pysugar/codex-profiles/internal/switcher"
	"github.com/pysugar/codex-profiles/internal/syncer"
	"github.com/pysugar/codex-profiles/internal/version"
	"go.uber.org/zap"
)

// CLI defines the command-line interface structure parsed by Kong.
type CLI struct {
	Config  string `help:"Path to config file" type:"path"`
	Verbose bool   `short:"v" help:"Enable debug logging"`

	List    ListCmd    `cmd:"" help:"List profiles"`
	Import  ImportCmd  `cmd:"" help:"Import a credential file as a profile"`
	Use     UseCmd     `cmd:"" help:"Set the active profile and sync the auth file"`
	Toggle  ToggleCmd  `cmd:"" help:"Switch back to the previously active profile"`
	Rename  RenameCmd  `cmd:"" help:"Rename a profile"`
	Delete  DeleteCmd  `cmd:"" help:"Delete a profile and its stored tokens"`
	Show    ShowCmd    `cmd:"" help:"Show the active profile"`
	Sync    SyncCmd    `cmd:"" help:"Force a sync of the auth file"`
	Refresh RefreshCmd `cmd:"" help:"Refresh the active profile's tokens"`
	Serve   ServeCmd   `cmd:"" help:"Run the local control API"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// App carries the constructed dependencies into command handlers.
type App struct {
	Cfg config.Config
	Mgr *switcher.Manager
	Log *zap.Logger
	Out io.Writer
}

// buildApp constructs the core from configuration: storage database,
// profile store, pointer state scoped per config, writer, and manager.
func buildApp(cli *CLI, log *zap.Logger) (*App, error) {
	cfgPath := cli.Config
	if cfgPath == "" {
		var err error
		cfgPath, err = config.Path()
		if err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	storageDir, err := cfg.ResolveStorageDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(storageDir, 0o700); err != nil {
		return nil, err
	}

	db, err := storage.Open(filepath.Join(storageDir, "secrets.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open storage database: %w", err)
	}

	workspace, err := os.Getwd()
	if err != nil {
		workspace = "."
	}

	secrets := storage.NewSecrets(db)
	states := storage.NewStates(db)
	pointers := state.NewPointers(states, cfg.ActiveScope, workspace, log)
	profiles := profile.NewStore(storageDir, secrets, states, log)
	writer := authfile.NewWriter(cfg.AuthPath(), cfg.Retention(), log)
	mgr := switcher.New(profiles, pointers, syncer.New(writer, log), log)

	return &App{Cfg: cfg, Mgr: mgr, Log: log, Out: os.Stdout}, nil
}

// resolveProfile accepts either a profile id or a display name. Name
// matches must be unambiguous since names are not required unique.
func (a *App) resolveProfile(ref string) (profile.Profile, error) {
	if p, ok := a.Mgr.Profiles().Get(ref); ok {
		return p, nil
	}

	var matches []profile.Profile
	for _, p := range a.Mgr.List() {
		if strings.EqualFold(p.Name, ref) {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return profile.Profile{}, fmt.Errorf("no profile named %q", ref)
	case 1:
		return matches[0], nil
	default:
		return profile.Profile{}, fmt.Errorf("profile name %q is ambiguous, use the id", ref)
	}
}

type ListCmd struct{}

func (c *ListCmd) Run(a *App) error {
	profiles := a.Mgr.List()
	if len(profiles) == 0 {
		fmt.Fprintln(a.Out, "no profiles; run `codexprofiles import --name <name>` after logging in with the Codex CLI")
		return nil
	}
	active, _ := a.Mgr.Active()
	for _, p := range profiles {
		marker := " "
		if p.ID == active.ID {
			marker = "*"
		}
		fmt.Fprintf(a.Out, "%s %-20s %-30s %-8s %s\n", marker, p.Name, p.Email, p.PlanType, p.ID)
	}
	return nil
}

type ImportCmd struct {
	Name    string `help:"Display name for a newly created profile" required:""`
	Path    string `help:"Credential file to import (default: the Codex auth.json)" type:"path"`
	Replace bool   `help:"Replace the matching profile's tokens when the credential is a duplicate"`
	Use     bool   `help:"Set the imported profile active afterwards"`
}

func (c *ImportCmd) Run(a *App) error {
	path := c.Path
	if path == "" {
		path = a.Cfg.AuthPath()
	}

	result, err := a.Mgr.Import(path, c.Name, c.Replace)
	if errors.Is(err, switcher.ErrDuplicateProfile) {
		return fmt.Errorf("credential matches existing profile %q (%s); re-run with --replace to update its tokens",
			result.Profile.Name, result.Profile.Email)
	}
	if errors.Is(err, authfile.ErrNoCredential) {
		return fmt.Errorf("%s is not a valid credential file", path)
	}
	if err != nil {
		return err
	}

	if result.Replaced {
		fmt.Fprintf(a.Out, "updated profile %q (%s)\n", result.Profile.Name, result.Profile.Email)
	} else {
		fmt.Fprintf(a.Out, "created profile %q (%s)\n", result.Profile.Name, result.Profile.Email)
	}

	if c.Use {
		return setActive(a, result.Profile)
	}
	return nil
}

type UseCmd struct {
	Profile string `arg:"" help:"Profile name or id"`
}

func (c *UseCmd) Run(a *App) error {
	p, err := a.resolveProfile(c.Profile)
	if err != nil {
		return err
	}
	return setActive(a, p)
}

func setActive(a *App, p profile.Profile) error {
	if err := a.Mgr.SetActive(p.ID); err != nil {
		if errors.Is(err, profile.ErrMissingTokens) {
			return fmt.Errorf("profile %q has no stored tokens; re-import it first", p.Name)
		}
		return err
	}
	fmt.Fprintf(a.Out, "switched to %q (%s)\n", p.Name, p.Email)
	return nil
}

type ToggleCmd struct{}

func (c *ToggleCmd) Run(a *App) error {
	p, err := a.Mgr.ToggleLast()
	if errors.Is(err, switcher.ErrNoLastProfile) {
		return errors.New("no previous profile recorded; use `codexprofiles use <name>`")
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "switched to %q (%s)\n", p.Name, p.Email)
	return nil
}

type RenameCmd struct {
	Profile string `arg:"" help:"Profile name or id"`
	Name    string `arg:"" help:"New display name"`
}

func (c *RenameCmd) Run(a *App) error {
	p, err := a.resolveProfile(c.Profile)
	if err != nil {
		return err
	}
	renamed, err := a.Mgr.Rename(p.ID, c.Name)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "renamed %q to %q\n", p.Name, renamed.Name)
	return nil
}

type DeleteCmd struct {
	Profile string `arg:"" help:"Profile name or id"`
}

func (c *DeleteCmd) Run(a *App) error {
	p, err := a.resolveProfile(c.Profile)
	if err != nil {
		return err
	}
	if err := a.Mgr.Delete(p.ID); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "deleted profile %q\n", p.Name)
	return nil
}

type ShowCmd struct{}

func (c *ShowCmd) Run(a *App) error {
	st := a.Mgr.Status()
	if !st.Active {
		fmt.Fprintln(a.Out, "no active profile")
		return nil
	}
	fmt.Fprintf(a.Out, "profile:  %s\n", st.Profile.Name)
	fmt.Fprintf(a.Out, "email:    %s\n", st.Profile.Email)
	fmt.Fprintf(a.Out, "plan:     %s\n", st.Profile.PlanType)
	if st.Profile.AccountID != "" {
		fmt.Fprintf(a.Out, "account:  %s\n", st.Profile.AccountID)
	}
	if !st.ExpiresAt.IsZero() {
		fmt.Fprintf(a.Out, "expires:  %s\n", st.ExpiresAt.Format(time.RFC3339))
	}
	fmt.Fprintf(a.Out, "auth file: %s\n", a.Cfg.AuthPath())
	return nil
}

type SyncCmd struct{}

func (c *SyncCmd) Run(a *App) error {
	if _, ok := a.Mgr.Active(); !ok {
		fmt.Fprintln(a.Out, "no active profile; nothing to sync")
		return nil
	}
	if err := a.Mgr.SyncNow(); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "synced %s\n", a.Cfg.AuthPath())
	return nil
}

type RefreshCmd struct{}

func (c *RefreshCmd) Run(a *App) error {
	p, err := a.Mgr.RefreshActive(context.Background())
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			return errors.New("no active profile to refresh")
		}
		return err
	}
	fmt.Fprintf(a.Out, "refreshed tokens for %q (%s)\n", p.Name, p.Email)
	return nil
}

type ServeCmd struct {
	Listen string `help:"Listen address (overrides config)"`
}

func (c *ServeCmd) Run(a *App) error {
	// The long-running surface is the activation analog: sync whatever is
	// active once, unconditionally, before serving.
	a.Mgr.StartupSync()

	addr := c.Listen
	if addr == "" {
		addr = a.Cfg.Listen
	}
	return server.Serve(addr, a.Mgr, a.Log)
}

type VersionCmd struct{}

func (c *VersionCmd) Run(a *App) error {
	fmt.Fprintln(a.Out, version.String())
	return nil
}
