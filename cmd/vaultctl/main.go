// vaultctl decrypts, inspects, and re-encrypts action-RPG save files.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"

	"vaultcodec/common"
	"vaultcodec/config"
	"vaultcodec/document"
	"vaultcodec/editstate"
	"vaultcodec/misc"
	"vaultcodec/orchestrator"
	"vaultcodec/state"
)

// initializeAppContext prepares application context before command execution
// but after command line has been parsed.
func initializeAppContext(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	var err error

	if cmd.NArg() == 0 {
		return ctx, nil
	}

	env := state.EnvFromContext(ctx)

	configFile := cmd.String("config")
	if env.Cfg, err = config.LoadConfiguration(configFile); err != nil {
		return ctx, fmt.Errorf("unable to prepare configuration: %w", err)
	}
	if cmd.Bool("debug") {
		if env.Rpt, err = env.Cfg.Reporting.Prepare(); err != nil {
			return ctx, fmt.Errorf("unable to prepare debug reporter: %w", err)
		}
		if len(configFile) > 0 {
			if data, err := config.Dump(env.Cfg); err == nil {
				env.Rpt.StoreData(fmt.Sprintf("config/%s", filepath.Base(configFile)), data)
			}
		}
	}
	if env.Log, err = env.Cfg.Logging.Prepare(env.Rpt); err != nil {
		return ctx, fmt.Errorf("unable to prepare logs: %w", err)
	}
	env.RedirectStdLog()

	env.Log.Debug("Program started", zap.Strings("args", os.Args), zap.String("ver", misc.GetVersion()), zap.String("runtime", runtime.Version()), zap.String("hash", misc.GetGitHash()))

	env.Overwrite = cmd.Bool("overwrite")
	if acct := cmd.String("account"); acct != "" {
		env.AccountID = config.SecretString(acct)
	} else {
		env.AccountID = env.Cfg.Vault.AccountID
	}
	ammoModeFlag := cmd.String("ammo-mode")
	if ammoModeFlag == "" {
		env.AmmoMode = env.Cfg.Items.AmmoMode
	} else if mode, err := common.ParseAmmoMode(ammoModeFlag); err == nil {
		env.AmmoMode = mode
	} else {
		return ctx, fmt.Errorf("invalid --ammo-mode: %w", err)
	}
	env.CatalogPath = env.Cfg.Items.CatalogPath

	return ctx, nil
}

func destroyAppContext(ctx context.Context, cmd *cli.Command) (err error) {
	env := state.EnvFromContext(ctx)

	if env.Log != nil {
		env.Log.Debug("Program ended", zap.Duration("elapsed", env.Uptime()), zap.Strings("parsed args", cmd.Args().Slice()))
	}

	env.RestoreStdLog()

	if env.Rpt != nil {
		if er := env.Rpt.Close(); er != nil {
			err = multierr.Append(err, fmt.Errorf("unable to close debug report: %w", er))
		}
	}
	if env.Cfg != nil && len(env.Cfg.Logging.FileLogger.Destination) > 0 {
		debug.SetCrashOutput(nil, debug.CrashOptions{})
		fname := filepath.Join(filepath.Dir(env.Cfg.Logging.FileLogger.Destination), misc.GetAppName()+"-panic.log")
		if fi, er := os.Stat(fname); er == nil && fi.Size() == 0 {
			if er := os.Remove(fname); er != nil {
				err = multierr.Append(err, fmt.Errorf("unable to remove empty panic log file '%s': %w", fname, er))
			}
		}
	}
	return
}

var errWasHandled bool

func exitErrHandler(ctx context.Context, _ *cli.Command, err error) {
	env := state.EnvFromContext(ctx)
	if env.Log != nil {
		env.Log.Error("Program ended with error", zap.Error(err))
		errWasHandled = true
	}
}

func usageErrorHandler(_ context.Context, _ *cli.Command, err error, _ bool) error {
	return err
}

func subcommandNotFoundHandler(ctx context.Context, _ *cli.Command, name string) {
	state.EnvFromContext(ctx).Log.Warn("Unknown command, nothing to do", zap.String("command", name))
}

func main() {
	ctx, stop := signal.NotifyContext(state.ContextWithEnv(context.Background()), os.Interrupt, syscall.SIGTERM)

	app := &cli.Command{
		Name:            misc.GetAppName(),
		Usage:           "decrypt, inspect, and re-encrypt action-RPG save files",
		Version:         misc.GetVersion() + " (" + runtime.Version() + ") : " + misc.GetGitHash(),
		HideHelpCommand: true,
		Before:          initializeAppContext,
		After:           destroyAppContext,
		OnUsageError:    usageErrorHandler,
		ExitErrHandler:  exitErrHandler,
		CommandNotFound: subcommandNotFoundHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "load configuration from `FILE` (YAML)"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "produce a debug report archive"},
			&cli.StringFlag{Name: "account", Aliases: []string{"a"}, Usage: "Steam account id used to derive the save's encryption key"},
			&cli.BoolFlag{Name: "overwrite", Aliases: []string{"ow"}, Usage: "overwrite destination files if they exist"},
			&cli.StringFlag{Name: "ammo-mode", Usage: "interpret ammo pools as `MODE` (raw, tiered)"},
		},
		Commands: []*cli.Command{
			{
				Name:         "inspect",
				Usage:        "decrypts a save file and prints its summary as YAML",
				OnUsageError: usageErrorHandler,
				Action:       runInspect,
				ArgsUsage:    "SAVEFILE",
			},
			{
				Name:         "decrypt",
				Usage:        "decrypts a save file to a plain Ion document",
				OnUsageError: usageErrorHandler,
				Action:       runDecrypt,
				ArgsUsage:    "SAVEFILE DESTINATION",
			},
			{
				Name:         "encrypt",
				Usage:        "re-encrypts a plain Ion document into a save file",
				OnUsageError: usageErrorHandler,
				Action:       runEncrypt,
				ArgsUsage:    "IONFILE DESTINATION",
			},
			{
				Name:         "edit",
				Usage:        "applies a YAML-encoded edit set to a save file",
				OnUsageError: usageErrorHandler,
				Action:       runEdit,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "edits", Aliases: []string{"e"}, Required: true, Usage: "path to YAML-encoded editstate.EditState"},
				},
				ArgsUsage: "SAVEFILE DESTINATION",
			},
		},
	}

	var err error
	defer func() {
		stop()
		if err != nil {
			if !errWasHandled {
				fmt.Fprintf(os.Stderr, "Program ended with error: %v\n", err)
			}
			os.Exit(1)
		}
	}()
	err = app.Run(ctx, os.Args)
}

func destinationOrErr(cmd *cli.Command, argIndex int, what string) (string, error) {
	v := cmd.Args().Get(argIndex)
	if v == "" {
		return "", fmt.Errorf("missing %s argument", what)
	}
	return v, nil
}

func requireOverwrite(env *state.LocalEnv, dest string) error {
	if env.Overwrite {
		return nil
	}
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("destination %q already exists (use --overwrite to replace it)", dest)
	}
	return nil
}

func runInspect(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	src, err := destinationOrErr(cmd, 0, "SAVEFILE")
	if err != nil {
		return err
	}

	loaded, err := orchestrator.Load(src, string(env.AccountID), env.Log)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(loaded.Summary)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	_, err = os.Stdout.Write(data)
	return err
}

func runDecrypt(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	src, err := destinationOrErr(cmd, 0, "SAVEFILE")
	if err != nil {
		return err
	}
	dst, err := destinationOrErr(cmd, 1, "DESTINATION")
	if err != nil {
		return err
	}
	if err := requireOverwrite(env, dst); err != nil {
		return err
	}

	raw, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading %q: %w", src, err)
	}
	doc, err := orchestrator.DecryptToDocument(raw, string(env.AccountID), env.Log)
	if err != nil {
		return err
	}
	plain, err := document.Encode(doc)
	if err != nil {
		return fmt.Errorf("re-encoding document: %w", err)
	}
	if err := os.WriteFile(dst, plain, 0o644); err != nil {
		return fmt.Errorf("writing %q: %w", dst, err)
	}
	env.Log.Info("decrypted save", zap.String("src", src), zap.String("dst", dst))
	return nil
}

func runEncrypt(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	src, err := destinationOrErr(cmd, 0, "IONFILE")
	if err != nil {
		return err
	}
	dst, err := destinationOrErr(cmd, 1, "DESTINATION")
	if err != nil {
		return err
	}
	if err := requireOverwrite(env, dst); err != nil {
		return err
	}

	plain, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading %q: %w", src, err)
	}
	doc, err := document.Decode(plain)
	if err != nil {
		return fmt.Errorf("decoding document: %w", err)
	}
	out, err := orchestrator.ApplyAndEncrypt(doc, nil, string(env.AccountID), env.Log)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, out, 0o644); err != nil {
		return fmt.Errorf("writing %q: %w", dst, err)
	}
	env.Log.Info("encrypted save", zap.String("src", src), zap.String("dst", dst))
	return nil
}

func runEdit(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	src, err := destinationOrErr(cmd, 0, "SAVEFILE")
	if err != nil {
		return err
	}
	dst, err := destinationOrErr(cmd, 1, "DESTINATION")
	if err != nil {
		return err
	}
	if err := requireOverwrite(env, dst); err != nil {
		return err
	}

	editsPath := cmd.String("edits")
	editsData, err := os.ReadFile(editsPath)
	if err != nil {
		return fmt.Errorf("reading edits file %q: %w", editsPath, err)
	}
	var edits editstate.EditState
	if err := yaml.Unmarshal(editsData, &edits); err != nil {
		return fmt.Errorf("parsing edits file %q: %w", editsPath, err)
	}
	edits.AmmoMode = env.AmmoMode

	raw, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading %q: %w", src, err)
	}
	doc, err := orchestrator.DecryptToDocument(raw, string(env.AccountID), env.Log)
	if err != nil {
		return err
	}

	out, err := orchestrator.ApplyAndEncrypt(doc, &edits, string(env.AccountID), env.Log)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, out, 0o644); err != nil {
		return fmt.Errorf("writing %q: %w", dst, err)
	}

	env.Log.Info("applied edits", zap.String("src", src), zap.String("edits", editsPath), zap.String("dst", dst))
	return nil
}
