// Package authz implements the authorization core: permission catalog
// seeding, organization-scoped role capability storage, the process-local
// permission cache, auth context resolution, viewer visibility overrides
// and optimistic-concurrency write guarding.
package authz
