package dynamodb

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dreschagin/dlp-kpi-monitor/internal/application/port"
)

const (
	defaultListLimit  = 24
	maxListLimit      = 100
	maxBatchWriteSize = 25
	maxBatchRetries   = 5

	// GSI1 groups runs of one host by overall status, GSI2 groups artifacts of one run.
	statusIndex = "GSI1"
	runIndex    = "GSI2"

	attrPK            = "PK"
	attrSK            = "SK"
	attrGSI1PK        = "GSI1PK"
	attrGSI1SK        = "GSI1SK"
	attrGSI2PK        = "GSI2PK"
	attrGSI2SK        = "GSI2SK"
	attrHost          = "host"
	attrRunID         = "run_id"
	attrArtifactType  = "artifact_type"
	attrS3Key         = "s3_key"
	attrURL           = "url"
	attrContentType   = "content_type"
	attrSizeBytes     = "size_bytes"
	attrOverallStatus = "overall_status"
	attrMetPercent    = "met_percent"
	attrCreatedAt     = "created_at"
	attrExpiresAt     = "expires_at"
)

var (
	hostPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)
	// run ids and statuses end up inside '#'-separated keys
	tokenPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,128}$`)
)

type dynamoAPI interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

type Config struct {
	TableName       string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	StrongReads     bool
}

// ReportIndexRepository implements port.ReportIndexRepository on a single DynamoDB table.
//
//	table  PK=HOST#<host>                  SK=RUN#<ms>#<run>#<type>
//	GSI1   PK=HOST#<host>#STATUS#<status>  SK=RUN#<ms>#<run>#<type>
//	GSI2   PK=HOST#<host>#RUN#<run>        SK=TYPE#<type>
//
// All artifacts of one run share a sort prefix, so a page never splits a run
// by time order and the newest run comes first.
type ReportIndexRepository struct {
	client      dynamoAPI
	tableName   string
	strongReads bool
}

func NewReportIndexRepository(ctx context.Context, cfg Config) (*ReportIndexRepository, error) {
	if strings.TrimSpace(cfg.TableName) == "" {
		return nil, fmt.Errorf("dynamodb table name is required")
	}

	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	accessKeyID := strings.TrimSpace(cfg.AccessKeyID)
	secretAccessKey := strings.TrimSpace(cfg.SecretAccessKey)
	if accessKeyID != "" || secretAccessKey != "" {
		if accessKeyID == "" || secretAccessKey == "" {
			return nil, fmt.Errorf("both dynamodb access key id and secret access key are required for static credentials")
		}
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws config for dynamodb: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(options *dynamodb.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			options.BaseEndpoint = &endpoint
		}
	})

	return newReportIndexRepository(client, strings.TrimSpace(cfg.TableName), cfg.StrongReads), nil
}

func newReportIndexRepository(client dynamoAPI, tableName string, strongReads bool) *ReportIndexRepository {
	return &ReportIndexRepository{client: client, tableName: tableName, strongReads: strongReads}
}

// PutBatch indexes the artifacts of archived runs, 25 items per request.
func (r *ReportIndexRepository) PutBatch(ctx context.Context, records []port.ReportMetadata) error {
	for start := 0; start < len(records); start += maxBatchWriteSize {
		end := min(start+maxBatchWriteSize, len(records))

		requests := make([]types.WriteRequest, 0, end-start)
		for _, record := range records[start:end] {
			item, err := r.toItem(record)
			if err != nil {
				return err
			}
			requests = append(requests, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: item},
			})
		}

		if err := r.writeBatchWithRetry(ctx, requests); err != nil {
			return err
		}
	}
	return nil
}

// ListByHost pages through archived runs of a host, newest first.
// RunID selects GSI2, Status selects GSI1, otherwise the base table is queried.
func (r *ReportIndexRepository) ListByHost(ctx context.Context, query port.ReportListQuery) (port.ReportListPage, error) {
	host := strings.TrimSpace(query.Host)
	if !hostPattern.MatchString(host) {
		return port.ReportListPage{}, fmt.Errorf("invalid host")
	}

	plan, err := planQuery(host, query)
	if err != nil {
		return port.ReportListPage{}, err
	}

	limit := query.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	input := plan.input(r.tableName, int32(limit))
	if plan.index == "" {
		input.ConsistentRead = boolPointer(r.strongReads)
	}
	if cursor := strings.TrimSpace(query.Cursor); cursor != "" {
		input.ExclusiveStartKey, err = decodeCursor(cursor, plan.scope())
		if err != nil {
			return port.ReportListPage{}, err
		}
	}

	output, err := r.client.Query(ctx, input)
	if err != nil {
		return port.ReportListPage{}, fmt.Errorf("dynamodb query failed: %w", err)
	}

	page := port.ReportListPage{Items: make([]port.ReportMetadata, 0, len(output.Items))}
	for _, raw := range output.Items {
		record, err := fromItem(raw)
		if err != nil {
			return port.ReportListPage{}, err
		}
		page.Items = append(page.Items, record)
	}
	if len(output.LastEvaluatedKey) > 0 {
		if page.NextCursor, err = encodeCursor(output.LastEvaluatedKey, plan.scope()); err != nil {
			return port.ReportListPage{}, err
		}
	}
	return page, nil
}

// queryPlan one Query against the table or one of its indexes
type queryPlan struct {
	index        string
	pkAttr       string
	pk           string
	skAttr       string
	skFrom       string
	skTo         string
	skPrefix     string
	artifactType string
}

func planQuery(host string, query port.ReportListQuery) (queryPlan, error) {
	artifactType := strings.TrimSpace(query.ArtifactType)
	if artifactType != "" && !tokenPattern.MatchString(artifactType) {
		return queryPlan{}, fmt.Errorf("invalid artifact type")
	}

	if runID := strings.TrimSpace(query.RunID); runID != "" {
		if !tokenPattern.MatchString(runID) {
			return queryPlan{}, fmt.Errorf("invalid run id")
		}
		plan := queryPlan{index: runIndex, pkAttr: attrGSI2PK, pk: runPK(host, runID), skAttr: attrGSI2SK}
		if artifactType != "" {
			plan.skPrefix = typeSK(artifactType)
		}
		return plan, nil
	}

	fromMS, toMS, hasRange, err := normalizeTimeRange(query.From, query.To)
	if err != nil {
		return queryPlan{}, err
	}

	plan := queryPlan{pkAttr: attrPK, pk: hostPK(host), skAttr: attrSK, artifactType: artifactType}
	if status := strings.TrimSpace(query.Status); status != "" {
		if !tokenPattern.MatchString(status) {
			return queryPlan{}, fmt.Errorf("invalid status")
		}
		plan.index = statusIndex
		plan.pkAttr, plan.pk, plan.skAttr = attrGSI1PK, statusPK(host, status), attrGSI1SK
	}
	if hasRange {
		plan.skFrom = fmt.Sprintf("RUN#%013d#", fromMS)
		plan.skTo = fmt.Sprintf("RUN#%013d#~", toMS)
	}
	return plan, nil
}

func (p queryPlan) input(table string, limit int32) *dynamodb.QueryInput {
	input := &dynamodb.QueryInput{
		TableName:        &table,
		Limit:            &limit,
		ScanIndexForward: boolPointer(false),
		ExpressionAttributeNames: map[string]string{
			"#pk": p.pkAttr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: p.pk},
		},
	}
	if p.index != "" {
		input.IndexName = stringPointer(p.index)
	}

	condition := "#pk = :pk"
	switch {
	case p.skPrefix != "":
		input.ExpressionAttributeNames["#sk"] = p.skAttr
		input.ExpressionAttributeValues[":prefix"] = &types.AttributeValueMemberS{Value: p.skPrefix}
		condition += " AND begins_with(#sk, :prefix)"
	case p.skFrom != "":
		input.ExpressionAttributeNames["#sk"] = p.skAttr
		input.ExpressionAttributeValues[":from"] = &types.AttributeValueMemberS{Value: p.skFrom}
		input.ExpressionAttributeValues[":to"] = &types.AttributeValueMemberS{Value: p.skTo}
		condition += " AND #sk BETWEEN :from AND :to"
	}
	input.KeyConditionExpression = &condition

	// Each run has only a couple of artifacts, so filtering after the key
	// condition reads at most one extra item per run.
	if p.artifactType != "" {
		input.ExpressionAttributeNames["#type"] = attrArtifactType
		input.ExpressionAttributeValues[":type"] = &types.AttributeValueMemberS{Value: p.artifactType}
		input.FilterExpression = stringPointer("#type = :type")
	}
	return input
}

// scope binds a cursor to the query it was issued for
func (p queryPlan) scope() string {
	return strings.Join([]string{p.index, p.pk, p.skPrefix, p.skFrom, p.skTo, p.artifactType}, "|")
}

func (r *ReportIndexRepository) writeBatchWithRetry(ctx context.Context, requests []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{r.tableName: requests}

	for attempt := 0; attempt < maxBatchRetries; attempt++ {
		output, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return fmt.Errorf("dynamodb batch write failed: %w", err)
		}
		if len(output.UnprocessedItems) == 0 {
			return nil
		}

		pending = output.UnprocessedItems
		select {
		case <-time.After(time.Duration(attempt+1) * 100 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("dynamodb batch write has unprocessed items after retries")
}

func (r *ReportIndexRepository) toItem(record port.ReportMetadata) (map[string]types.AttributeValue, error) {
	host := strings.TrimSpace(record.Host)
	runID := strings.TrimSpace(record.RunID)
	status := strings.TrimSpace(record.OverallStatus)
	artifactType := strings.TrimSpace(record.ArtifactType)
	s3Key := strings.TrimSpace(record.S3Key)
	switch {
	case !hostPattern.MatchString(host):
		return nil, fmt.Errorf("invalid host")
	case !tokenPattern.MatchString(runID):
		return nil, fmt.Errorf("invalid run_id")
	case !tokenPattern.MatchString(status):
		return nil, fmt.Errorf("invalid overall_status")
	case !tokenPattern.MatchString(artifactType):
		return nil, fmt.Errorf("invalid artifact_type")
	case s3Key == "":
		return nil, fmt.Errorf("s3_key is required")
	}

	createdAt := record.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	createdAtMS := createdAt.UnixMilli()
	runSK := fmt.Sprintf("RUN#%013d#%s#%s", createdAtMS, runID, artifactType)

	item := map[string]types.AttributeValue{
		attrPK:            stringAttr(hostPK(host)),
		attrSK:            stringAttr(runSK),
		attrGSI1PK:        stringAttr(statusPK(host, status)),
		attrGSI1SK:        stringAttr(runSK),
		attrGSI2PK:        stringAttr(runPK(host, runID)),
		attrGSI2SK:        stringAttr(typeSK(artifactType)),
		attrHost:          stringAttr(host),
		attrRunID:         stringAttr(runID),
		attrOverallStatus: stringAttr(status),
		attrArtifactType:  stringAttr(artifactType),
		attrS3Key:         stringAttr(s3Key),
		attrCreatedAt:     &types.AttributeValueMemberN{Value: strconv.FormatInt(createdAtMS, 10)},
		attrMetPercent:    &types.AttributeValueMemberN{Value: strconv.FormatFloat(record.MetPercent, 'f', -1, 64)},
	}
	if url := strings.TrimSpace(record.URL); url != "" {
		item[attrURL] = stringAttr(url)
	}
	if contentType := strings.TrimSpace(record.ContentType); contentType != "" {
		item[attrContentType] = stringAttr(contentType)
	}
	if record.SizeBytes > 0 {
		item[attrSizeBytes] = &types.AttributeValueMemberN{Value: strconv.FormatInt(record.SizeBytes, 10)}
	}
	// expires_at is the table TTL attribute, epoch seconds
	if !record.ExpiresAt.IsZero() {
		item[attrExpiresAt] = &types.AttributeValueMemberN{Value: strconv.FormatInt(record.ExpiresAt.UTC().Unix(), 10)}
	}
	return item, nil
}

func fromItem(item map[string]types.AttributeValue) (port.ReportMetadata, error) {
	var record port.ReportMetadata
	for name, dst := range map[string]*string{
		attrHost:         &record.Host,
		attrRunID:        &record.RunID,
		attrArtifactType: &record.ArtifactType,
		attrS3Key:        &record.S3Key,
	} {
		value := optionalString(item, name)
		if strings.TrimSpace(value) == "" {
			return port.ReportMetadata{}, fmt.Errorf("missing attribute %s", name)
		}
		*dst = value
	}

	createdAtMS, ok := optionalNumber(item, attrCreatedAt)
	if !ok {
		return port.ReportMetadata{}, fmt.Errorf("missing attribute %s", attrCreatedAt)
	}
	record.CreatedAt = time.UnixMilli(int64(createdAtMS)).UTC()
	record.OverallStatus = optionalString(item, attrOverallStatus)
	record.URL = optionalString(item, attrURL)
	record.ContentType = optionalString(item, attrContentType)
	if size, ok := optionalNumber(item, attrSizeBytes); ok {
		record.SizeBytes = int64(size)
	}
	record.MetPercent, _ = optionalNumber(item, attrMetPercent)
	if expires, ok := optionalNumber(item, attrExpiresAt); ok && expires > 0 {
		record.ExpiresAt = time.Unix(int64(expires), 0).UTC()
	}
	return record, nil
}

func normalizeTimeRange(from, to time.Time) (int64, int64, bool, error) {
	if from.IsZero() && to.IsZero() {
		return 0, 0, false, nil
	}

	fromMS, toMS := int64(0), int64(math.MaxInt64)
	if !from.IsZero() {
		fromMS = from.UnixMilli()
	}
	if !to.IsZero() {
		toMS = to.UnixMilli()
	}
	if fromMS > toMS {
		return 0, 0, false, fmt.Errorf("from must be less than or equal to to")
	}
	return fromMS, toMS, true, nil
}

func hostPK(host string) string {
	return "HOST#" + host
}

func statusPK(host, status string) string {
	return "HOST#" + host + "#STATUS#" + status
}

func runPK(host, runID string) string {
	return "HOST#" + host + "#RUN#" + runID
}

func typeSK(artifactType string) string {
	return "TYPE#" + artifactType
}

type cursorPayload struct {
	Scope string            `json:"scope"`
	Key   map[string]string `json:"key"`
}

// All key attributes of the table and both indexes are strings.
func encodeCursor(key map[string]types.AttributeValue, scope string) (string, error) {
	payload := cursorPayload{Scope: scope, Key: make(map[string]string, len(key))}
	for name, raw := range key {
		value, ok := raw.(*types.AttributeValueMemberS)
		if !ok {
			return "", fmt.Errorf("unsupported cursor attribute type for %s", name)
		}
		payload.Key[name] = value.Value
	}

	serialized, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(serialized), nil
}

func decodeCursor(cursor, scope string) (map[string]types.AttributeValue, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor")
	}

	var payload cursorPayload
	if err := json.Unmarshal(raw, &payload); err != nil || len(payload.Key) == 0 {
		return nil, fmt.Errorf("invalid cursor")
	}
	if payload.Scope != scope {
		return nil, fmt.Errorf("cursor does not match query filters")
	}

	key := make(map[string]types.AttributeValue, len(payload.Key))
	for name, value := range payload.Key {
		key[name] = stringAttr(value)
	}
	return key, nil
}

func stringAttr(v string) *types.AttributeValueMemberS {
	return &types.AttributeValueMemberS{Value: v}
}

func optionalString(item map[string]types.AttributeValue, name string) string {
	if value, ok := item[name].(*types.AttributeValueMemberS); ok {
		return value.Value
	}
	return ""
}

func optionalNumber(item map[string]types.AttributeValue, name string) (float64, bool) {
	value, ok := item[name].(*types.AttributeValueMemberN)
	if !ok {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(value.Value, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func boolPointer(v bool) *bool {
	return &v
}

func stringPointer(v string) *string {
	return &v
}
