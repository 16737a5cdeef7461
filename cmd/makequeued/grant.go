package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"makequeue-backend/internal/logger"
	"makequeue-backend/internal/permission"
)

func newGrantCmd(a *app) *cobra.Command {
	var revoke bool
	cmd := &cobra.Command{
		Use:   "grant <username> <capability|role:name>",
		Short: "Give a user a capability or a role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newServices(a.cfg)
			if err != nil {
				return err
			}
			u, err := svc.store.GetUserByUsername(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("user %q: %w", args[0], err)
			}

			subject := permission.UserSubject(u.ID)
			target := args[1]
			if role, ok := strings.CutPrefix(target, "role:"); ok && role != "" {
				if revoke {
					return errors.New("roles cannot be revoked here")
				}
				err = svc.perms.AddRoleForUser(u.ID, role)
			} else if revoke {
				err = svc.perms.Revoke(subject, permission.Capability(target))
			} else {
				err = svc.perms.Grant(subject, permission.Capability(target))
			}
			if err != nil {
				return err
			}
			logger.Get().Info("permissions updated", "username", u.Username, "target", target, "revoke", revoke)
			return nil
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "remove the capability instead")
	return cmd
}

