package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"assistant-bridge/internal/domain"
)

const (
	pkPrefixWorkspace = "WS#"
	pkPrefixUser      = "USER#"
	skPrefixMember    = "MEMBER#"
	skWorkspaceMeta   = "META"
	skUserProfile     = "PROFILE"

	conditionNotExists = "attribute_not_exists(PK) AND attribute_not_exists(SK)"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Accounts defines the provisioning operations consumed by the hand-off service.
type Accounts interface {
	GetWorkspace(ctx context.Context, tenantID string) (domain.Workspace, bool, error)
	CreateWorkspace(ctx context.Context, ws domain.Workspace) error
	GetUser(ctx context.Context, providerUserID string) (domain.HostUser, bool, error)
	SaveLogin(ctx context.Context, user domain.HostUser, m domain.Membership) error
}

// Client wraps a DynamoDB table holding host users, workspaces and memberships.
type Client struct {
	api       dynamodbAPI
	tableName string
}

var _ Accounts = (*Client)(nil)

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

func workspacePK(tenantID string) string {
	return pkPrefixWorkspace + tenantID
}

func userPK(providerUserID string) string {
	return pkPrefixUser + providerUserID
}

func memberSK(userID string) string {
	return skPrefixMember + userID
}

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// GetWorkspace loads the workspace provisioned for a provider tenant.
func (c *Client) GetWorkspace(ctx context.Context, tenantID string) (domain.Workspace, bool, error) {
	item, err := c.get(ctx, workspacePK(tenantID), skWorkspaceMeta)
	if err != nil {
		return domain.Workspace{}, false, fmt.Errorf("repository: GetWorkspace: %w", err)
	}
	if item == nil {
		return domain.Workspace{}, false, nil
	}
	ws, err := itemToWorkspace(item)
	if err != nil {
		return domain.Workspace{}, false, fmt.Errorf("repository: GetWorkspace decode: %w", err)
	}
	return ws, true, nil
}

// CreateWorkspace inserts ws only if no workspace exists for its tenant. A
// lost race returns domain.ErrAlreadyExists.
func (c *Client) CreateWorkspace(ctx context.Context, ws domain.Workspace) error {
	if ws.PK == "" || ws.SK == "" {
		return errors.New("repository: CreateWorkspace: PK and SK are required")
	}
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                workspaceItem(ws),
		ConditionExpression: aws.String(conditionNotExists),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("repository: CreateWorkspace %s: %w", ws.TenantID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("repository: CreateWorkspace: %w", err)
	}
	return nil
}

// GetUser loads the host user linked to a provider user.
func (c *Client) GetUser(ctx context.Context, providerUserID string) (domain.HostUser, bool, error) {
	item, err := c.get(ctx, userPK(providerUserID), skUserProfile)
	if err != nil {
		return domain.HostUser{}, false, fmt.Errorf("repository: GetUser: %w", err)
	}
	if item == nil {
		return domain.HostUser{}, false, nil
	}
	u, err := itemToUser(item)
	if err != nil {
		return domain.HostUser{}, false, fmt.Errorf("repository: GetUser decode: %w", err)
	}
	return u, true, nil
}

// SaveLogin upserts the user profile and the workspace membership in one
// transaction.
func (c *Client) SaveLogin(ctx context.Context, user domain.HostUser, m domain.Membership) error {
	if user.PK == "" || user.SK == "" {
		return errors.New("repository: SaveLogin: user PK and SK are required")
	}
	if m.PK == "" || m.SK == "" {
		return errors.New("repository: SaveLogin: membership PK and SK are required")
	}

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName: aws.String(c.tableName),
					Item:      userItem(user),
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(c.tableName),
					Item:      membershipItem(m),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SaveLogin: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, pk, sk string) (map[string]types.AttributeValue, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            key(pk, sk),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}
	return out.Item, nil
}

// NewWorkspace constructs the workspace record for a provider tenant.
func NewWorkspace(id, tenantID, name string, now time.Time) domain.Workspace {
	return domain.Workspace{
		PK:        workspacePK(tenantID),
		SK:        skWorkspaceMeta,
		ID:        id,
		TenantID:  tenantID,
		Name:      name,
		CreatedAt: now.UTC().Format(time.RFC3339),
	}
}

// NewHostUser constructs the profile record for a provider user.
func NewHostUser(id string, identity domain.ProviderIdentity, now time.Time) domain.HostUser {
	return domain.HostUser{
		PK:             userPK(identity.UserID),
		SK:             skUserProfile,
		ID:             id,
		ProviderUserID: identity.UserID,
		Email:          identity.Email,
		Name:           identity.Name,
		CreatedAt:      now.UTC().Format(time.RFC3339),
	}
}

// NewMembership constructs the membership of user in ws.
func NewMembership(ws domain.Workspace, user domain.HostUser, role domain.HostRole, now time.Time) domain.Membership {
	return domain.Membership{
		PK:          workspacePK(ws.TenantID),
		SK:          memberSK(user.ID),
		WorkspaceID: ws.ID,
		UserID:      user.ID,
		Role:        role,
		LastLogin:   now.UTC().Format(time.RFC3339),
	}
}

func itemToWorkspace(item map[string]types.AttributeValue) (domain.Workspace, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.Workspace{}, err
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.Workspace{}, err
	}
	id, err := strAttr(item, "id")
	if err != nil {
		return domain.Workspace{}, err
	}
	tenantID, err := strAttr(item, "tenantId")
	if err != nil {
		return domain.Workspace{}, err
	}
	name, _ := strAttr(item, "name")
	createdAt, _ := strAttr(item, "createdAt")
	return domain.Workspace{PK: pk, SK: sk, ID: id, TenantID: tenantID, Name: name, CreatedAt: createdAt}, nil
}

func itemToUser(item map[string]types.AttributeValue) (domain.HostUser, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.HostUser{}, err
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.HostUser{}, err
	}
	id, err := strAttr(item, "id")
	if err != nil {
		return domain.HostUser{}, err
	}
	providerID, err := strAttr(item, "providerUserId")
	if err != nil {
		return domain.HostUser{}, err
	}
	email, _ := strAttr(item, "email")
	name, _ := strAttr(item, "name")
	createdAt, _ := strAttr(item, "createdAt")
	return domain.HostUser{
		PK:             pk,
		SK:             sk,
		ID:             id,
		ProviderUserID: providerID,
		Email:          email,
		Name:           name,
		CreatedAt:      createdAt,
	}, nil
}

func workspaceItem(ws domain.Workspace) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: ws.PK},
		"SK":        &types.AttributeValueMemberS{Value: ws.SK},
		"id":        &types.AttributeValueMemberS{Value: ws.ID},
		"tenantId":  &types.AttributeValueMemberS{Value: ws.TenantID},
		"name":      &types.AttributeValueMemberS{Value: ws.Name},
		"createdAt": &types.AttributeValueMemberS{Value: ws.CreatedAt},
	}
}

func userItem(u domain.HostUser) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: u.PK},
		"SK":             &types.AttributeValueMemberS{Value: u.SK},
		"id":             &types.AttributeValueMemberS{Value: u.ID},
		"providerUserId": &types.AttributeValueMemberS{Value: u.ProviderUserID},
		"email":          &types.AttributeValueMemberS{Value: u.Email},
		"name":           &types.AttributeValueMemberS{Value: u.Name},
		"createdAt":      &types.AttributeValueMemberS{Value: u.CreatedAt},
	}
}

func membershipItem(m domain.Membership) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":          &types.AttributeValueMemberS{Value: m.PK},
		"SK":          &types.AttributeValueMemberS{Value: m.SK},
		"workspaceId": &types.AttributeValueMemberS{Value: m.WorkspaceID},
		"userId":      &types.AttributeValueMemberS{Value: m.UserID},
		"role":        &types.AttributeValueMemberS{Value: string(m.Role)},
		"lastLogin":   &types.AttributeValueMemberS{Value: m.LastLogin},
	}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
