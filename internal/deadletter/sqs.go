package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/rzbill/floq/internal/workqueue"
)

// SQSAPI is the slice of the SQS client the forwarder needs.
type SQSAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// AWSOptions selects how the SQS client is built.
type AWSOptions struct {
	Region string
	// Endpoint overrides the service URL, e.g. a LocalStack address. When
	// set, static dummy credentials are used unless keys are given.
	Endpoint  string
	AccessKey string
	SecretKey string
}

// NewSQSClient builds an SQS client from the default AWS config chain,
// adjusted by opts.
func NewSQSClient(ctx context.Context, opts AWSOptions) (*sqs.Client, error) {
	var loaders []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loaders = append(loaders, awsconfig.WithRegion(opts.Region))
	}
	switch {
	case opts.AccessKey != "":
		loaders = append(loaders, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	case opts.Endpoint != "":
		loaders = append(loaders, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("dummy", "dummy", "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	}), nil
}

// SQSForwarder sends each dead letter to an SQS queue as a JSON Entry.
type SQSForwarder struct {
	client   SQSAPI
	queueURL string
	now      func() time.Time
}

// NewSQSForwarder returns a forwarder targeting queueURL.
func NewSQSForwarder(client SQSAPI, queueURL string) *SQSForwarder {
	return &SQSForwarder{client: client, queueURL: queueURL, now: time.Now}
}

// OnDeadLetter implements workqueue.DeadLetterSink.
func (f *SQSForwarder) OnDeadLetter(ctx context.Context, msg workqueue.Message) error {
	body, err := json.Marshal(FromMessage(msg, f.now()))
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	_, err = f.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(f.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"floq-queue": {
				DataType:    aws.String("String"),
				StringValue: aws.String(msg.Queue),
			},
			"floq-receive-count": {
				DataType:    aws.String("Number"),
				StringValue: aws.String(strconv.Itoa(msg.ReceiveCount)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sqs send %s: %w", msg.ID, err)
	}
	return nil
}
