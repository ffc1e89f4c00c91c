// Package firestoredb is the production store.Store implementation,
// backed by Cloud Firestore through the Firebase Admin SDK. The store
// abstraction's single-document reads, conditional writes, indexed
// queries, and multi-document transactions map directly onto Firestore's
// own document model.
package firestoredb

import (
	"context"
	"encoding/base64"
	"fmt"
	"reflect"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	qstore "github.com/mkucukkoc/aiorealbackend/store"
)

// Store is a store.Store backed by a Cloud Firestore client.
type Store struct {
	client *firestore.Client
}

var _ qstore.Store = (*Store)(nil)

// Credentials selects how the Firebase Admin SDK authenticates. Exactly one
// of these should be set; an empty Credentials relies on Application
// Default Credentials, which is the normal path on GCE/GKE/Cloud Run.
type Credentials struct {
	// CredentialsFile is a path to a service-account JSON key file.
	CredentialsFile string
	// CredentialsJSONBase64 is a base64-encoded service-account JSON key,
	// useful when the key is injected as a single environment variable.
	CredentialsJSONBase64 string
	// ProjectID overrides the project ID inferred from the credentials.
	ProjectID string
}

// New connects to Firestore using the given credentials and returns a Store.
func New(ctx context.Context, creds Credentials) (*Store, error) {
	var clientOpts []option.ClientOption

	switch {
	case creds.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(creds.CredentialsFile))
	case creds.CredentialsJSONBase64 != "":
		decoded, err := base64.StdEncoding.DecodeString(creds.CredentialsJSONBase64)
		if err != nil {
			return nil, fmt.Errorf("firestoredb: decode credentials: %w", err)
		}
		clientOpts = append(clientOpts, option.WithCredentialsJSON(decoded))
	}

	var fbConfig *firebase.Config
	if creds.ProjectID != "" {
		fbConfig = &firebase.Config{ProjectID: creds.ProjectID}
	}

	app, err := firebase.NewApp(ctx, fbConfig, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("firestoredb: firebase.NewApp: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestoredb: app.Firestore: %w", err)
	}

	return &Store{client: client}, nil
}

// NewFromClient wraps an already-constructed Firestore client.
func NewFromClient(client *firestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Get(ctx context.Context, collection, id string, dst any) error {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return qstore.ErrNotFound
		}
		return fmt.Errorf("firestoredb: get %s/%s: %w", collection, id, err)
	}
	if err := snap.DataTo(dst); err != nil {
		return fmt.Errorf("firestoredb: decode %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Set(ctx context.Context, collection, id string, doc any, opts qstore.SetOptions) error {
	ref := s.client.Collection(collection).Doc(id)

	if opts.CreateOnly {
		_, err := ref.Create(ctx, doc)
		if err != nil {
			if status.Code(err) == codes.AlreadyExists {
				return qstore.ErrAlreadyExists
			}
			return fmt.Errorf("firestoredb: create %s/%s: %w", collection, id, err)
		}
		return nil
	}

	var writeOpts []firestore.SetOption
	if opts.Merge {
		writeOpts = append(writeOpts, firestore.MergeAll)
	}

	if _, err := ref.Set(ctx, doc, writeOpts...); err != nil {
		return fmt.Errorf("firestoredb: set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, q qstore.Query, dst any) error {
	query := firestoreQuery(s.client.Collection(q.Collection).Query, q)

	iter := query.Documents(ctx)
	defer iter.Stop()

	out := reflect.ValueOf(dst).Elem()
	elemType := out.Type().Elem()

	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("firestoredb: query %s: %w", q.Collection, err)
		}

		elem := reflect.New(elemType)
		if err := snap.DataTo(elem.Interface()); err != nil {
			return fmt.Errorf("firestoredb: decode query result %s/%s: %w", q.Collection, snap.Ref.ID, err)
		}
		out.Set(reflect.Append(out, elem.Elem()))
	}
	return nil
}

func firestoreQuery(base firestore.Query, q qstore.Query) firestore.Query {
	result := base
	for _, f := range q.Filters {
		result = result.Where(f.Field, string(f.Op), f.Value)
	}
	if q.Limit > 0 {
		result = result.Limit(q.Limit)
	}
	return result
}

func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx qstore.Transaction) error) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, t *firestore.Transaction) error {
		return fn(ctx, &txn{client: s.client, tx: t})
	})
	if err != nil {
		if status.Code(err) == codes.Aborted {
			return fmt.Errorf("%w: %v", qstore.ErrConflict, err)
		}
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.Collection("__ping__").Doc("__ping__").Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("firestoredb: ping: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// txn implements store.Transaction against a live *firestore.Transaction.
// Firestore requires all reads in a transaction to precede all writes; this
// wrapper does not enforce that ordering itself and relies on callers
// following the documented reserve/commit protocol, matching the
// transaction-closure pattern the store abstraction was designed for.
type txn struct {
	client *firestore.Client
	tx     *firestore.Transaction
}

func (t *txn) Get(_ context.Context, collection, id string, dst any) error {
	snap, err := t.tx.Get(t.client.Collection(collection).Doc(id))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return qstore.ErrNotFound
		}
		return fmt.Errorf("firestoredb: tx get %s/%s: %w", collection, id, err)
	}
	if err := snap.DataTo(dst); err != nil {
		return fmt.Errorf("firestoredb: tx decode %s/%s: %w", collection, id, err)
	}
	return nil
}

func (t *txn) Set(_ context.Context, collection, id string, doc any, opts qstore.SetOptions) error {
	ref := t.client.Collection(collection).Doc(id)

	if opts.CreateOnly {
		return t.tx.Create(ref, doc)
	}

	var writeOpts []firestore.SetOption
	if opts.Merge {
		writeOpts = append(writeOpts, firestore.MergeAll)
	}
	return t.tx.Set(ref, doc, writeOpts...)
}
