// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package permit

import (
	"context"
	"encoding/json"

	"github.com/permitio/permit-golang/pkg/config"
	"github.com/permitio/permit-golang/pkg/enforcement"
	"github.com/permitio/permit-golang/pkg/models"
	permitsdk "github.com/permitio/permit-golang/pkg/permit"
	"github.com/samber/oops"

	"github.com/zombify/zombify/internal/engine"
)

// sdkBackend drives the management API and the PDP through the SDK client.
type sdkBackend struct {
	client *permitsdk.Client
}

func newSDKBackend(cfg Config) *sdkBackend {
	conf := config.NewConfigBuilder(cfg.APIKey).
		WithApiUrl(cfg.APIURL).
		WithPdpUrl(cfg.PDPURL).
		Build()
	return &sdkBackend{client: permitsdk.New(conf)}
}

type roleWrite struct {
	Key         string   `json:"key,omitempty"`
	Name        string   `json:"name,omitempty"`
	Permissions []string `json:"permissions"`
}

type resourceWrite struct {
	Key     string                       `json:"key"`
	Name    string                       `json:"name"`
	Actions map[string]engine.ActionMeta `json:"actions"`
}

type userWrite struct {
	Key        string         `json:"key"`
	Email      *string        `json:"email,omitempty"`
	FirstName  string         `json:"first_name"`
	LastName   string         `json:"last_name"`
	Attributes map[string]any `json:"attributes"`
}

// convert copies in to out through their JSON wire form. SDK models and the
// engine types share the Permit API field names.
func convert(in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return oops.Code("ENGINE_ENCODE_FAILED").Wrap(err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return oops.Code("ENGINE_ENCODE_FAILED").Wrap(err)
	}
	return nil
}

func toRole(read *models.RoleRead) (*engine.Role, error) {
	var role engine.Role
	if err := convert(read, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

func toUser(read *models.UserRead) (*engine.User, error) {
	var user engine.User
	if err := convert(read, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (b *sdkBackend) createRole(ctx context.Context, spec engine.RoleSpec) (*engine.Role, error) {
	var body models.RoleCreate
	if err := convert(roleWrite{Key: spec.Key, Name: spec.Name, Permissions: spec.Permissions}, &body); err != nil {
		return nil, err
	}
	read, err := b.client.Api.Roles.Create(ctx, body)
	if err != nil {
		return nil, err
	}
	return toRole(read)
}

func (b *sdkBackend) getRole(ctx context.Context, key string) (*engine.Role, error) {
	read, err := b.client.Api.Roles.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return toRole(read)
}

func (b *sdkBackend) updateRolePermissions(ctx context.Context, key string, grants []string) (*engine.Role, error) {
	var body models.RoleUpdate
	if err := convert(roleWrite{Permissions: grants}, &body); err != nil {
		return nil, err
	}
	read, err := b.client.Api.Roles.Update(ctx, key, body)
	if err != nil {
		return nil, err
	}
	return toRole(read)
}

func (b *sdkBackend) deleteRole(ctx context.Context, key string) error {
	return b.client.Api.Roles.Delete(ctx, key)
}

func (b *sdkBackend) createResource(ctx context.Context, spec engine.ResourceSpec) (*engine.Resource, error) {
	var body models.ResourceCreate
	if err := convert(resourceWrite{Key: spec.Key, Name: spec.Name, Actions: spec.Actions}, &body); err != nil {
		return nil, err
	}
	read, err := b.client.Api.Resources.Create(ctx, body)
	if err != nil {
		return nil, err
	}
	var res engine.Resource
	if err := convert(read, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (b *sdkBackend) deleteResource(ctx context.Context, key string) error {
	return b.client.Api.Resources.Delete(ctx, key)
}

func (b *sdkBackend) assignRole(ctx context.Context, a engine.RoleAssignment) error {
	_, err := b.client.Api.Users.AssignRole(ctx, a.User, a.Role, a.Tenant)
	return err
}

func (b *sdkBackend) getUser(ctx context.Context, key string) (*engine.User, error) {
	read, err := b.client.Api.Users.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return toUser(read)
}

func (b *sdkBackend) syncUser(ctx context.Context, spec engine.UserSpec) (*engine.User, error) {
	var body models.UserCreate
	w := userWrite{
		Key:        spec.Key,
		Email:      spec.Email,
		FirstName:  spec.FirstName,
		LastName:   spec.LastName,
		Attributes: spec.Attributes,
	}
	if err := convert(w, &body); err != nil {
		return nil, err
	}
	read, err := b.client.SyncUser(ctx, body)
	if err != nil {
		return nil, err
	}
	return toUser(read)
}

// check asks the PDP. The SDK's Check takes no context.
func (b *sdkBackend) check(_ context.Context, user *engine.User, action, resource, tenant string) (bool, error) {
	u := enforcement.UserBuilder(user.Key).Build()
	r := enforcement.ResourceBuilder(resource).WithTenant(tenant).Build()
	return b.client.Check(u, enforcement.Action(action), r)
}
