package database

import (
	"context"
	"log"

	"telesession-service/internal/app/config"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
)

func NewFirestore(driverConfig *config.DriverConfig) *firestore.Client {
	var opts []option.ClientOption
	if driverConfig.Firestore.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(driverConfig.Firestore.CredentialsFile))
	}

	client, err := firestore.NewClient(context.Background(), driverConfig.Firestore.ProjectID, opts...)
	if err != nil {
		log.Fatalf("Failed to initialize firestore client: %s", err.Error())
	}
	log.Println("Successfully connected to firestore")
	return client
}
