package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"gsm-go/internal/gsm"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var cloudCmd = &cobra.Command{
	Use:   "cloud",
	Short: "Manage the cloud mirror",
}

var cloudSetCmd = &cobra.Command{
	Use:   "set TYPE",
	Short: "Configure the backend (Disabled, WebDAV, S3, Filesystem)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		backend := gsm.BackendConfig{Type: args[0]}
		backend.Endpoint, _ = flags.GetString("endpoint")
		backend.Username, _ = flags.GetString("username")
		backend.Bucket, _ = flags.GetString("bucket")
		backend.Region, _ = flags.GetString("region")
		backend.AccessKeyID, _ = flags.GetString("access-key-id")
		backend.Root, _ = flags.GetString("dir")
		rootPath, _ := flags.GetString("root-path")

		var err error
		switch backend.Type {
		case gsm.BackendWebDAV:
			if backend.Password, err = promptSecret("WebDAV password"); err != nil {
				return err
			}
		case gsm.BackendS3:
			if backend.SecretAccessKey, err = promptSecret("S3 secret access key"); err != nil {
				return err
			}
		}

		a, err := newApp(cmd, "cloud set")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.SetCloud(cmd.Context(), backend, rootPath); err != nil {
			return fmt.Errorf("configuring backend: %w", err)
		}
		fmt.Printf("Cloud backend set to %s\n", backend.Type)
		return nil
	},
}

// promptSecret reads a secret without echo when stdin is a terminal and
// a plain line otherwise.
func promptSecret(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprintf(os.Stderr, "%s: ", label)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", label, err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading %s: %w", label, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

var cloudCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the configured backend is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "cloud check")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.CheckCloud(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Backend is reachable.")
		return nil
	},
}

var cloudUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Push all local snapshots and the global config",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "cloud upload")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Upload(cmd.Context()); err != nil {
			return failed("upload", err)
		}
		fmt.Println("Upload complete.")
		return nil
	},
}

var cloudDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Replace local snapshots and the global config with the mirror's",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "cloud download")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Download(cmd.Context()); err != nil {
			return failed("download", err)
		}
		fmt.Println("Download complete.")
		return nil
	},
}

var cloudSyncCmd = &cobra.Command{
	Use:       "sync on|off",
	Short:     "Mirror every change as it happens",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var on bool
		switch args[0] {
		case "on":
			on = true
		case "off":
		default:
			return fmt.Errorf("expected on or off, got %q", args[0])
		}

		a, err := newApp(cmd, "cloud sync")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.SetAlwaysSync(cmd.Context(), on); err != nil {
			return err
		}
		fmt.Printf("Always sync: %s\n", args[0])
		return nil
	},
}

func init() {
	cloudCmd.AddCommand(cloudSetCmd)
	cloudSetCmd.Flags().String("endpoint", "", "WebDAV URL or S3 endpoint")
	cloudSetCmd.Flags().String("username", "", "WebDAV username")
	cloudSetCmd.Flags().String("bucket", "", "S3 bucket")
	cloudSetCmd.Flags().String("region", "", "S3 region")
	cloudSetCmd.Flags().String("access-key-id", "", "S3 access key id")
	cloudSetCmd.Flags().String("dir", "", "Filesystem backend directory")
	cloudSetCmd.Flags().String("root-path", "", "Remote root (default /game-save-manager)")
	cloudCmd.AddCommand(cloudCheckCmd)
	cloudCmd.AddCommand(cloudUploadCmd)
	cloudCmd.AddCommand(cloudDownloadCmd)
	cloudCmd.AddCommand(cloudSyncCmd)
}
