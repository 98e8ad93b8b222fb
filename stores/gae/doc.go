// Package gae provides a Google Cloud Datastore implementation of the
// secrets user store.  It is designed for deployment on Google Cloud
// Platform and supports multi-tenancy through Datastore namespaces.
//
// # Datastore Kinds
//
// The package uses the following Datastore kinds:
//   - User: user accounts keyed by user id
//   - Username: username reservations keyed by the normalized username
//   - ProviderId: external identity mappings keyed by the provider id
//
// The mapping kinds exist so username and provider-id lookups are key gets,
// and so registration and federated find-or-create can run inside a single
// transaction.
//
// # Usage
//
//	client, _ := datastore.NewClient(ctx, projectID)
//	userStore := gae.NewUserStore(client, "") // default namespace
package gae
