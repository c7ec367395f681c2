package gcp

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/ocrdocumentflow/internal/models"
)

// ErrUserNotFound is returned when no user record matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// FirestoreUserDirectory looks users up in the collection owned by the
// credential service. It only reads.
type FirestoreUserDirectory struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreUserDirectory(client *firestore.Client, collection string) *FirestoreUserDirectory {
	return &FirestoreUserDirectory{client: client, collection: collection}
}

// Lookup returns the user registered under email, or ErrUserNotFound.
func (d *FirestoreUserDirectory) Lookup(ctx context.Context, email string) (*models.UserRecord, error) {
	if email == "" {
		return nil, ErrUserNotFound
	}
	docs, err := d.client.Collection(d.collection).Where("email", "==", email).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrUserNotFound
	}

	var user models.UserRecord
	if err := docs[0].DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", docs[0].Ref.ID, err)
	}
	if user.UserID == "" {
		user.UserID = docs[0].Ref.ID
	}
	return &user, nil
}

func (d *FirestoreUserDirectory) Close() error {
	return d.client.Close()
}
