package publishers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// sqsAPI is the subset of the SQS client the queue sink calls.
type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// snsAPI is the subset of the SNS client the topic sink calls.
type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// sendFunc delivers one serialized event and returns the broker message id.
type sendFunc func(ctx context.Context, body string, attrs map[string]string) (string, error)

// awsPublisher is the SQS and SNS sink. Only the send step differs between
// the two services.
type awsPublisher struct {
	id   string
	typ  string
	dest string
	send sendFunc
	log  Logger
}

func newSQSPublisher(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.SQS == nil {
		return nil, fmt.Errorf("publisher %q missing sqs configuration", cfg.ID)
	}
	awsCfg, err := loadAWSConfig(ctx, cfg.SQS.AWSConfig)
	if err != nil {
		return nil, err
	}
	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.SQS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.SQS.Endpoint)
		}
	})
	return &awsPublisher{
		id:   cfg.ID,
		typ:  TypeSQS,
		dest: cfg.SQS.QueueURL,
		send: sqsSender(client, cfg.SQS.QueueURL),
		log:  ensureLogger(log),
	}, nil
}

func newSNSPublisher(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.SNS == nil {
		return nil, fmt.Errorf("publisher %q missing sns configuration", cfg.ID)
	}
	awsCfg, err := loadAWSConfig(ctx, cfg.SNS.AWSConfig)
	if err != nil {
		return nil, err
	}
	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if cfg.SNS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.SNS.Endpoint)
		}
	})
	return &awsPublisher{
		id:   cfg.ID,
		typ:  TypeSNS,
		dest: cfg.SNS.TopicARN,
		send: snsSender(client, cfg.SNS.TopicARN),
		log:  ensureLogger(log),
	}, nil
}

func sqsSender(client sqsAPI, queueURL string) sendFunc {
	return func(ctx context.Context, body string, attrs map[string]string) (string, error) {
		out, err := client.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(queueURL),
			MessageBody: aws.String(body),
			MessageAttributes: stringAttributes(attrs, func(v string) sqstypes.MessageAttributeValue {
				return sqstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
			}),
		})
		if err != nil {
			return "", err
		}
		return aws.ToString(out.MessageId), nil
	}
}

func snsSender(client snsAPI, topicARN string) sendFunc {
	return func(ctx context.Context, body string, attrs map[string]string) (string, error) {
		out, err := client.Publish(ctx, &sns.PublishInput{
			TopicArn: aws.String(topicARN),
			Message:  aws.String(body),
			MessageAttributes: stringAttributes(attrs, func(v string) snstypes.MessageAttributeValue {
				return snstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
			}),
		})
		if err != nil {
			return "", err
		}
		return aws.ToString(out.MessageId), nil
	}
}

func (p *awsPublisher) ID() string   { return p.id }
func (p *awsPublisher) Type() string { return p.typ }

// Publish serializes the event and hands it to the broker.
func (p *awsPublisher) Publish(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msgID, err := p.send(ctx, string(payload), evt.attributes())
	if err != nil {
		p.log.ErrorObj("report delivery failed", "publisher_aws_error", map[string]any{
			"publisher_id": p.id,
			"type":         p.typ,
			"report_id":    evt.ReportID,
			"error":        err.Error(),
		})
		return fmt.Errorf("send to %s %s: %w", p.typ, p.dest, err)
	}
	p.log.DebugObj("report delivered", "publisher_aws_delivery", map[string]any{
		"publisher_id": p.id,
		"type":         p.typ,
		"report_id":    evt.ReportID,
		"message_id":   msgID,
	})
	return nil
}

// loadAWSConfig resolves the SDK config for a sink, applying static
// credentials when both halves are configured.
func loadAWSConfig(ctx context.Context, c AWSConfig) (aws.Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	opts := []func(*awscfg.LoadOptions) error{awscfg.WithRegion(c.Region)}
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

// stringAttributes converts event attributes into the shape both SQS and SNS use.
func stringAttributes[T any](attrs map[string]string, build func(value string) T) map[string]T {
	out := make(map[string]T, len(attrs))
	for k, v := range attrs {
		if v == "" {
			continue
		}
		out[k] = build(v)
	}
	return out
}
