package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

var ErrEndpointDisabled = errors.New("push endpoint disabled")

// SNSAPI is the subset of *sns.Client used by Gateway.
type SNSAPI interface {
	CreatePlatformEndpoint(ctx context.Context, in *sns.CreatePlatformEndpointInput, optFns ...func(*sns.Options)) (*sns.CreatePlatformEndpointOutput, error)
	DeleteEndpoint(ctx context.Context, in *sns.DeleteEndpointInput, optFns ...func(*sns.Options)) (*sns.DeleteEndpointOutput, error)
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Gateway registers device tokens as SNS platform endpoints and publishes to
// them.
type Gateway struct {
	client         SNSAPI
	applicationARN string
}

func NewGateway(cfg aws.Config, applicationARN string) *Gateway {
	return NewGatewayWith(sns.NewFromConfig(cfg), applicationARN)
}

func NewGatewayWith(client SNSAPI, applicationARN string) *Gateway {
	return &Gateway{client: client, applicationARN: applicationARN}
}

func (g *Gateway) CreateEndpoint(ctx context.Context, deviceToken, userData string) (string, error) {
	out, err := g.client.CreatePlatformEndpoint(ctx, &sns.CreatePlatformEndpointInput{
		PlatformApplicationArn: aws.String(g.applicationARN),
		Token:                  aws.String(deviceToken),
		CustomUserData:         aws.String(userData),
	})
	if err != nil {
		return "", fmt.Errorf("create platform endpoint: %w", err)
	}
	return aws.ToString(out.EndpointArn), nil
}

func (g *Gateway) DeleteEndpoint(ctx context.Context, endpointARN string) error {
	_, err := g.client.DeleteEndpoint(ctx, &sns.DeleteEndpointInput{EndpointArn: aws.String(endpointARN)})
	if err != nil {
		return fmt.Errorf("delete platform endpoint: %w", err)
	}
	return nil
}

// Publish sends msg to one endpoint. A disabled endpoint is reported as
// ErrEndpointDisabled so the caller can drop the subscription.
func (g *Gateway) Publish(ctx context.Context, endpointARN string, msg Message) error {
	body, err := snsMessage(msg)
	if err != nil {
		return err
	}
	_, err = g.client.Publish(ctx, &sns.PublishInput{
		TargetArn:        aws.String(endpointARN),
		Message:          aws.String(body),
		MessageStructure: aws.String("json"),
	})
	var disabled *types.EndpointDisabledException
	if errors.As(err, &disabled) {
		return fmt.Errorf("%w: %s", ErrEndpointDisabled, endpointARN)
	}
	if err != nil {
		return fmt.Errorf("publish push: %w", err)
	}
	return nil
}

// snsMessage renders the per-platform envelope SNS expects when
// MessageStructure is "json".
func snsMessage(msg Message) (string, error) {
	data := map[string]string{"action": msg.Action, "entity_id": msg.EntityID.String()}
	for k, v := range msg.Data {
		data[k] = v
	}

	apns, err := json.Marshal(map[string]any{
		"aps":  map[string]any{"alert": map[string]string{"title": msg.Title, "body": msg.Body}},
		"data": data,
	})
	if err != nil {
		return "", fmt.Errorf("marshal apns payload: %w", err)
	}
	gcm, err := json.Marshal(map[string]any{
		"notification": map[string]string{"title": msg.Title, "body": msg.Body},
		"data":         data,
	})
	if err != nil {
		return "", fmt.Errorf("marshal gcm payload: %w", err)
	}

	envelope, err := json.Marshal(map[string]string{
		"default":      msg.Body,
		"APNS":         string(apns),
		"APNS_SANDBOX": string(apns),
		"GCM":          string(gcm),
	})
	if err != nil {
		return "", fmt.Errorf("marshal push envelope: %w", err)
	}
	return string(envelope), nil
}
