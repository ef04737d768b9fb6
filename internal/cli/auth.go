package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ning0612/fsbridge/internal/adapter/gdrive"
	"github.com/Ning0612/fsbridge/internal/adapter/smb"
	"github.com/Ning0612/fsbridge/internal/domain"
)

// transportOfType resolves the selected transport and checks its type
func (a *app) transportOfType(want domain.TransportType) (*domain.Transport, error) {
	t, err := a.transport()
	if err != nil {
		return nil, err
	}
	if t.Type != want {
		return nil, fmt.Errorf("backend %s is %s, not %s: %w", t.Name, t.Type, want, domain.ErrUnsupported)
	}
	return t, nil
}

func (a *app) authCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to a Google Drive backend",
		Long: `Run the OAuth flow for a gdrive backend and cache the token.

Open the printed URL, authorize, and paste the code back.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.transportOfType(domain.TransportGDrive)
			if err != nil {
				return err
			}

			auth, err := gdrive.NewAuthenticatorFromFile(t.Credentials, t.TokenPath)
			if err != nil {
				return err
			}
			if _, err := auth.Authenticate(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return err
			}
			a.log.Info("gdrive token saved", "backend", t.Name, "path", auth.TokenPath())
			return nil
		},
	}
}

func (a *app) credsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "creds",
		Short: "Manage SMB passwords in the OS keyring",
	}

	set := &cobra.Command{
		Use:   "set",
		Short: "Store the password of an SMB backend (read from stdin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.transportOfType(domain.TransportSMB)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Password for %s@%s/%s: ", t.User, t.Host, t.Share)
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read password: %w", err)
			}
			password := strings.TrimRight(line, "\r\n")

			store, err := smb.NewKeyringStore()
			if err != nil {
				return fmt.Errorf("failed to open keyring: %w", err)
			}
			return store.Set(t.Host, t.Share, smb.Credentials{
				Domain:   t.Domain,
				Username: t.User,
				Password: password,
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete",
		Short: "Remove the stored password of an SMB backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.transportOfType(domain.TransportSMB)
			if err != nil {
				return err
			}
			store, err := smb.NewKeyringStore()
			if err != nil {
				return fmt.Errorf("failed to open keyring: %w", err)
			}
			return store.Delete(t.Host, t.Share)
		},
	}

	cmd.AddCommand(set, del)
	return cmd
}
