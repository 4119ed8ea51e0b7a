// Package db persists rendered export artifacts (MusicXML, MIDI) in
// DynamoDB, keyed by the renderer's content-hash key. Scores
// themselves are never stored.
package db

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"

	"github.com/jsphweid/choirgen/constants"
)

type Store struct {
	client *dynamodb.DynamoDB
	table  string
}

func NewStore() (*Store, error) {
	endpoint := constants.GetDynamoEndpoint()
	sess, err := session.NewSession(&aws.Config{
		Region:   aws.String(constants.GetDynamoRegion()),
		Endpoint: &endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create DynamoDB session: %w", err)
	}
	return &Store{client: dynamodb.New(sess), table: constants.GetArtifactTable()}, nil
}

// PutArtifact stores a rendered artifact under its cache key,
// overwriting any previous version.
func (s *Store) PutArtifact(key, contentType string, data []byte) error {
	_, err := s.client.PutItem(&dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]*dynamodb.AttributeValue{
			"PK":          {S: aws.String(key)},
			"ContentType": {S: aws.String(contentType)},
			"Payload":     {B: data},
			"CreatedAt":   {S: aws.String(time.Now().UTC().Format(time.RFC3339))},
		},
	})
	if err != nil {
		return fmt.Errorf("could not store artifact %s: %w", key, err)
	}
	return nil
}

// GetArtifact loads a stored artifact and its content type; a missing
// key returns (nil, "", nil).
func (s *Store) GetArtifact(key string) ([]byte, string, error) {
	res, err := s.client.GetItem(&dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]*dynamodb.AttributeValue{
			"PK": {S: aws.String(key)},
		},
	})
	if err != nil {
		return nil, "", fmt.Errorf("could not load artifact %s: %w", key, err)
	}
	if res.Item == nil || res.Item["Payload"] == nil {
		return nil, "", nil
	}
	contentType := ""
	if ct := res.Item["ContentType"]; ct != nil && ct.S != nil {
		contentType = *ct.S
	}
	return res.Item["Payload"].B, contentType, nil
}
