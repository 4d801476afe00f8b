package digitalocean

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/fuad-daoud/discord-archiver/archive"
)

type Config struct {
	Endpoint string
	Region   string
	Bucket   string
	Key      string
	Secret   string
}

// Spaces mirrors archived attachments into an S3 compatible bucket.
type Spaces struct {
	client s3iface.S3API
	bucket string
}

func NewSpaces(config Config) (*Spaces, error) {
	s3Config := &aws.Config{
		Credentials:      credentials.NewStaticCredentials(config.Key, config.Secret, ""),
		Endpoint:         aws.String(config.Endpoint),
		S3ForcePathStyle: aws.Bool(false),
		Region:           aws.String(config.Region),
	}

	newSession, err := session.NewSession(s3Config)
	if err != nil {
		return nil, fmt.Errorf("could not create spaces session: %w", err)
	}
	return &Spaces{client: s3.New(newSession), bucket: config.Bucket}, nil
}

// ObjectKey is attachments/<message id>/<attachment id>-<filename>.
func ObjectKey(attachment archive.Attachment) string {
	return fmt.Sprintf("attachments/%d/%d-%s", attachment.MessageID, attachment.ID, attachment.Filename)
}

func (s *Spaces) Put(ctx context.Context, attachment archive.Attachment) error {
	object := s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ObjectKey(attachment)),
		Body:   bytes.NewReader(attachment.Content),
		ACL:    aws.String("private"),
		Metadata: map[string]*string{
			"message-id":    aws.String(strconv.FormatUint(attachment.MessageID, 10)),
			"attachment-id": aws.String(strconv.FormatUint(attachment.ID, 10)),
		},
	}
	if attachment.ContentType != nil {
		object.ContentType = attachment.ContentType
	}
	_, err := s.client.PutObjectWithContext(ctx, &object)
	return err
}
