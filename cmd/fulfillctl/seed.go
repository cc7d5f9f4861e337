package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/coursecart/fulfillment/internal/auth"
	"github.com/coursecart/fulfillment/internal/model"
	"github.com/coursecart/fulfillment/internal/repository"
)

func (a *app) userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage users"}

	var id, email, name, role string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				id = ulid.Make().String()
			}
			user := &model.User{ID: id, Email: email, Name: name, Role: role, Courses: []string{}}
			if err := a.validateUser(user); err != nil {
				return err
			}

			return a.withStore(cmd, func(ctx context.Context, s store) error {
				now := a.now().UTC()
				user.CreatedAt, user.UpdatedAt = now, now
				if err := s.CreateUser(ctx, user); err != nil {
					return fmt.Errorf("create user: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created user %s <%s> role=%s\n", user.ID, user.Email, user.Role)
				return nil
			})
		},
	}
	create.Flags().StringVar(&id, "id", "", "User ID (generated when empty)")
	create.Flags().StringVar(&email, "email", "", "Email address")
	create.Flags().StringVar(&name, "name", "", "Display name")
	create.Flags().StringVar(&role, "role", model.RoleUser, "Role: user or admin")
	_ = create.MarkFlagRequired("email")

	cmd.AddCommand(create)
	return cmd
}

func (a *app) validateUser(u *model.User) error {
	if err := a.validator.Var(u.ID, "required,entity_id"); err != nil {
		return fmt.Errorf("invalid --id %q", u.ID)
	}
	if err := a.validator.Var(u.Email, "required,email"); err != nil {
		return fmt.Errorf("invalid --email %q", u.Email)
	}
	if err := a.validator.Var(u.Role, "oneof=user admin"); err != nil {
		return fmt.Errorf("invalid --role %q: use user or admin", u.Role)
	}
	return nil
}

func (a *app) courseCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "course", Short: "Manage courses"}

	var id, name string
	var price int64
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a course",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				id = ulid.Make().String()
			}
			if err := a.validator.Var(id, "required,entity_id"); err != nil {
				return fmt.Errorf("invalid --id %q", id)
			}
			if strings.TrimSpace(name) == "" {
				return errors.New("--name is required")
			}
			if price < 0 {
				return errors.New("--price must not be negative")
			}

			return a.withStore(cmd, func(ctx context.Context, s store) error {
				now := a.now().UTC()
				course := &model.Course{ID: id, Name: name, Price: price, CreatedAt: now, UpdatedAt: now}
				if err := s.CreateCourse(ctx, course); err != nil {
					return fmt.Errorf("create course: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created course %s %q price=%d\n", course.ID, course.Name, course.Price)
				return nil
			})
		},
	}
	create.Flags().StringVar(&id, "id", "", "Course ID (generated when empty)")
	create.Flags().StringVar(&name, "name", "", "Course name")
	create.Flags().Int64Var(&price, "price", 0, "Price in minor currency units")

	cmd.AddCommand(create)
	return cmd
}

func (a *app) apiKeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "api-key", Short: "Manage API keys"}

	var userID, email, name, scopesInput, env, format string
	create := &cobra.Command{
		Use:   "create",
		Short: "Mint an API key for a user, creating the user when --email is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			scopes, err := parseScopes(scopesInput)
			if err != nil {
				return err
			}
			if format != "plain" && format != "json" {
				return errors.New("invalid --format; use plain or json")
			}

			return a.withStore(cmd, func(ctx context.Context, s store) error {
				if err := a.ensureUser(ctx, s, userID, email, scopes); err != nil {
					return err
				}

				generated, err := auth.GenerateAPIKey(env)
				if err != nil {
					return fmt.Errorf("generate api key: %w", err)
				}
				key := &model.APIKey{
					ID:        ulid.Make().String(),
					UserID:    userID,
					KeyHash:   generated.Hash,
					KeyPrefix: generated.Prefix,
					Scopes:    scopes,
					Name:      name,
					CreatedAt: a.now().UTC(),
				}
				if err := s.CreateAPIKey(ctx, key); err != nil {
					return fmt.Errorf("create api key: %w", err)
				}

				return printKey(cmd.OutOrStdout(), format, keyOutput{
					UserID:    userID,
					KeyID:     key.ID,
					Key:       generated.Plaintext,
					KeyPrefix: key.KeyPrefix,
					Scopes:    scopes,
				})
			})
		},
	}
	create.Flags().StringVar(&userID, "user-id", "", "Owner user ID")
	create.Flags().StringVar(&email, "email", "", "Create the owner with this email when missing")
	create.Flags().StringVar(&name, "name", "cli", "Key name")
	create.Flags().StringVar(&scopesInput, "scopes", model.ScopeOrders, "Comma-separated scopes (orders,admin)")
	create.Flags().StringVar(&env, "env", auth.EnvLive, "Key environment: live or test")
	create.Flags().StringVar(&format, "format", "plain", "Output format: plain or json")
	_ = create.MarkFlagRequired("user-id")

	cmd.AddCommand(create)
	return cmd
}

// ensureUser checks the owner exists. With an email it is created on
// demand; admin-scoped keys get an admin owner.
func (a *app) ensureUser(ctx context.Context, s store, userID, email string, scopes []string) error {
	existing, err := s.GetUserByID(ctx, userID)
	if err == nil {
		if email != "" && existing.Email != email {
			return fmt.Errorf("user %s exists with different email: %s", userID, existing.Email)
		}
		return nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return fmt.Errorf("load user: %w", err)
	}
	if email == "" {
		return fmt.Errorf("user %s not found; pass --email to create it", userID)
	}

	if byEmail, err := s.GetUserByEmail(ctx, email); err == nil {
		return fmt.Errorf("email %s already used by user %s", email, byEmail.ID)
	}

	role := model.RoleUser
	if slices.Contains(scopes, model.ScopeAdmin) {
		role = model.RoleAdmin
	}
	user := &model.User{ID: userID, Email: email, Role: role, Courses: []string{}}
	if err := a.validateUser(user); err != nil {
		return err
	}
	now := a.now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	if err := s.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func parseScopes(input string) ([]string, error) {
	var scopes []string
	for part := range strings.SplitSeq(input, ",") {
		scope := strings.TrimSpace(part)
		if scope == "" {
			continue
		}
		if !slices.Contains(model.ValidScopes, scope) {
			return nil, fmt.Errorf("invalid scope: %s", scope)
		}
		if !slices.Contains(scopes, scope) {
			scopes = append(scopes, scope)
		}
	}
	if len(scopes) == 0 {
		return []string{model.ScopeOrders}, nil
	}
	return scopes, nil
}
