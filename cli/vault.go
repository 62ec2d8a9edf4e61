package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"VeilKit/internal/core"
	"VeilKit/pkg/lockbox"
	"VeilKit/pkg/logger"
)

var (
	keyfilePath  string
	extraEntropy string
	kdfTime      uint32
	kdfMemory    uint32
)

var lockCmd = &cobra.Command{
	Use:   "lock <file>...",
	Short: "Encrypt files into password-locked containers",
	Long: `Lock encrypts each file into a container next to it. The original
file is left untouched; shred it separately if you want it gone.

A passphrase is read from the terminal. Add --keyfile to also bind the
container to a key file: unlocking then requires both.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLock,
}

var unlockCmd = &cobra.Command{
	Use:   "unlock <container>...",
	Short: "Decrypt containers back to their original files",
	Long: `Unlock verifies and decrypts each container. The original file name
is restored and the container is removed on success. A wrong passphrase,
wrong keyfile and a corrupted container are indistinguishable by design.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUnlock,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <container>",
	Short: "Show the public header of a container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine := lockbox.NewEngine(logger.Get())
		info, err := engine.Inspect(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Name:      %s\n", info.Name)
		fmt.Printf("Size:      %d bytes\n", info.PlainSize)
		fmt.Printf("Keyfile:   %v\n", info.KeyfileRequired)
		fmt.Printf("KDF:       argon2id t=%d m=%d KiB p=%d\n", info.Params.Time, info.Params.MemoryKiB, info.Params.Threads)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{lockCmd, unlockCmd} {
		cmd.Flags().StringVarP(&keyfilePath, "keyfile", "k", "", "path to a key file")
	}
	lockCmd.Flags().StringVar(&extraEntropy, "extra-entropy", "", "extra entropy mixed into salt and nonce generation")
	lockCmd.Flags().Uint32Var(&kdfTime, "kdf-time", 0, "override argon2id iterations")
	lockCmd.Flags().Uint32Var(&kdfMemory, "kdf-memory", 0, "override argon2id memory in KiB")

	rootCmd.AddCommand(lockCmd, unlockCmd, inspectCmd)
}

// readCredentials prompts for the passphrase and hashes the keyfile.
// confirm asks for the passphrase twice, for lock operations.
func readCredentials(confirm bool) (lockbox.Credentials, error) {
	creds := lockbox.Credentials{}

	if keyfilePath != "" {
		hash, err := lockbox.HashKeyfile(keyfilePath)
		if err != nil {
			return creds, fmt.Errorf("failed to read keyfile: %w", err)
		}
		creds.KeyfileHash = hash
	}

	fmt.Fprint(os.Stderr, "Passphrase (empty to use keyfile only): ")
	pass, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return creds, fmt.Errorf("failed to read passphrase: %w", err)
	}
	creds.Passphrase = string(pass)

	if confirm && creds.Passphrase != "" {
		fmt.Fprint(os.Stderr, "Confirm passphrase: ")
		again, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return creds, fmt.Errorf("failed to read passphrase: %w", err)
		}
		if creds.Passphrase != string(again) {
			return creds, errors.New("passphrases do not match")
		}
	}

	if creds.Passphrase == "" && len(creds.KeyfileHash) == 0 {
		return creds, core.ErrNoSecret
	}
	return creds, nil
}

func runLock(cmd *cobra.Command, args []string) error {
	creds, err := readCredentials(true)
	if err != nil {
		return err
	}

	params := lockbox.DefaultKDFParams()
	if kdfTime > 0 {
		params.Time = kdfTime
	}
	if kdfMemory > 0 {
		params.MemoryKiB = kdfMemory
	}

	engine := lockbox.NewEngine(logger.Get())
	extra := []byte(extraEntropy)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Locking files..."
	s.Start()

	index := 0
	result, err := core.RunBatch(cmd.Context(), args, func(ctx context.Context, path string) (int64, error) {
		opts := lockbox.LockOptions{Params: params}
		if len(extra) > 0 {
			opts.ExtraEntropy = lockbox.PerFileEntropy(extra, index)
		}
		index++
		_, err := engine.Lock(ctx, path, creds, opts)
		return 0, err
	}, func(p core.Progress) {
		s.Suffix = fmt.Sprintf(" Locking %s (%d/%d)", p.CurrentFile, p.Index, p.Total)
	})
	s.Stop()
	if err != nil {
		return err
	}

	printBatchOutcome("locked", result)
	return nil
}

func runUnlock(cmd *cobra.Command, args []string) error {
	creds, err := readCredentials(false)
	if err != nil {
		return err
	}

	engine := lockbox.NewEngine(logger.Get())

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Unlocking files..."
	s.Start()

	result, err := core.RunBatch(cmd.Context(), args, func(ctx context.Context, path string) (int64, error) {
		_, err := engine.Unlock(ctx, path, creds)
		return 0, err
	}, func(p core.Progress) {
		s.Suffix = fmt.Sprintf(" Unlocking %s (%d/%d)", p.CurrentFile, p.Index, p.Total)
	})
	s.Stop()
	if err != nil {
		return err
	}

	printBatchOutcome("unlocked", result)
	return nil
}

// printBatchOutcome renders the shared success/failure summary for batches.
func printBatchOutcome(verb string, result *core.BatchResult) {
	if result.Succeeded > 0 {
		fmt.Println(color.GreenString("✓ %d file(s) %s", result.Succeeded, verb))
	}
	for _, f := range result.Failed {
		fmt.Println(color.RedString("✗ %s: %s", f.Path, f.Message))
	}
	if result.Cancelled {
		fmt.Println(color.YellowString("! run cancelled; remaining files untouched"))
	}
}
