package provision

import (
	"context"
	"encoding/json"
	"net/url"
	"slices"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithy "github.com/aws/smithy-go"
)

const testAccount = "123456789012"

type fakeIAM struct {
	mu       sync.Mutex
	roles    map[string]*iamtypes.Role
	attached map[string][]string
	inline   map[string]string

	creates, trustUpdates, attaches, inlinePuts int
}

func newFakeIAM() *fakeIAM {
	return &fakeIAM{
		roles:    map[string]*iamtypes.Role{},
		attached: map[string][]string{},
		inline:   map[string]string{},
	}
}

func (f *fakeIAM) mutations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates + f.trustUpdates + f.attaches + f.inlinePuts
}

func noSuchEntity() error {
	return &iamtypes.NoSuchEntityException{Message: aws.String("not found")}
}

func (f *fakeIAM) GetRole(ctx context.Context, in *iam.GetRoleInput, _ ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.roles[aws.ToString(in.RoleName)]
	if !ok {
		return nil, noSuchEntity()
	}
	c := *r
	return &iam.GetRoleOutput{Role: &c}, nil
}

func (f *fakeIAM) CreateRole(ctx context.Context, in *iam.CreateRoleInput, _ ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(in.RoleName)
	if _, ok := f.roles[name]; ok {
		return nil, &iamtypes.EntityAlreadyExistsException{Message: aws.String("exists")}
	}
	r := &iamtypes.Role{
		RoleName:                 in.RoleName,
		Arn:                      aws.String("arn:aws:iam::" + testAccount + ":role/" + name),
		AssumeRolePolicyDocument: aws.String(url.QueryEscape(aws.ToString(in.AssumeRolePolicyDocument))),
	}
	f.roles[name] = r
	f.creates++
	c := *r
	return &iam.CreateRoleOutput{Role: &c}, nil
}

func (f *fakeIAM) UpdateAssumeRolePolicy(ctx context.Context, in *iam.UpdateAssumeRolePolicyInput, _ ...func(*iam.Options)) (*iam.UpdateAssumeRolePolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.roles[aws.ToString(in.RoleName)]
	if !ok {
		return nil, noSuchEntity()
	}
	r.AssumeRolePolicyDocument = aws.String(url.QueryEscape(aws.ToString(in.PolicyDocument)))
	f.trustUpdates++
	return &iam.UpdateAssumeRolePolicyOutput{}, nil
}

// ListAttachedRolePolicies pages one policy at a time.
func (f *fakeIAM) ListAttachedRolePolicies(ctx context.Context, in *iam.ListAttachedRolePoliciesInput, _ ...func(*iam.Options)) (*iam.ListAttachedRolePoliciesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.attached[aws.ToString(in.RoleName)]
	start := 0
	if in.Marker != nil {
		start, _ = strconv.Atoi(*in.Marker)
	}
	out := &iam.ListAttachedRolePoliciesOutput{}
	if start < len(list) {
		out.AttachedPolicies = []iamtypes.AttachedPolicy{{PolicyArn: aws.String(list[start])}}
	}
	if start+1 < len(list) {
		out.IsTruncated = true
		out.Marker = aws.String(strconv.Itoa(start + 1))
	}
	return out, nil
}

func (f *fakeIAM) AttachRolePolicy(ctx context.Context, in *iam.AttachRolePolicyInput, _ ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(in.RoleName)
	f.attached[name] = append(f.attached[name], aws.ToString(in.PolicyArn))
	f.attaches++
	return &iam.AttachRolePolicyOutput{}, nil
}

func (f *fakeIAM) GetRolePolicy(ctx context.Context, in *iam.GetRolePolicyInput, _ ...func(*iam.Options)) (*iam.GetRolePolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.inline[aws.ToString(in.RoleName)+"/"+aws.ToString(in.PolicyName)]
	if !ok {
		return nil, noSuchEntity()
	}
	return &iam.GetRolePolicyOutput{PolicyDocument: aws.String(url.QueryEscape(doc))}, nil
}

func (f *fakeIAM) PutRolePolicy(ctx context.Context, in *iam.PutRolePolicyInput, _ ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inline[aws.ToString(in.RoleName)+"/"+aws.ToString(in.PolicyName)] = aws.ToString(in.PolicyDocument)
	f.inlinePuts++
	return &iam.PutRolePolicyOutput{}, nil
}

type fakeLambda struct {
	mu         sync.Mutex
	fn         *lambdatypes.FunctionConfiguration
	statements []string

	// pendingPolls makes the next GetFunction calls report State=Pending.
	pendingPolls int
	stuckPending bool
	// conflicts makes the next mutating calls fail with ResourceConflictException.
	conflicts int
	// roleNotAssumable makes the next CreateFunction calls fail as if the
	// role had not propagated.
	roleNotAssumable int
	permissionExists bool
	// racer is installed as the function by "another writer" just before
	// the next CreateFunction, which then loses the race.
	racer *lambdatypes.FunctionConfiguration

	creates, codeUpdates, configUpdates, permissionAdds int
}

func (f *fakeLambda) mutations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates + f.codeUpdates + f.configUpdates + f.permissionAdds
}

func conflictErr() error {
	return &lambdatypes.ResourceConflictException{Message: aws.String("The operation cannot be performed at this time. An update is in progress.")}
}

func (f *fakeLambda) takeConflict() bool {
	if f.conflicts > 0 {
		f.conflicts--
		return true
	}
	return false
}

func (f *fakeLambda) GetFunction(ctx context.Context, in *lambda.GetFunctionInput, _ ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fn == nil {
		return nil, &lambdatypes.ResourceNotFoundException{Message: aws.String("Function not found")}
	}
	c := *f.fn
	if f.stuckPending {
		c.State = lambdatypes.StatePending
	} else if f.pendingPolls > 0 {
		f.pendingPolls--
		c.State = lambdatypes.StatePending
	}
	return &lambda.GetFunctionOutput{Configuration: &c}, nil
}

func (f *fakeLambda) CreateFunction(ctx context.Context, in *lambda.CreateFunctionInput, _ ...func(*lambda.Options)) (*lambda.CreateFunctionOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.roleNotAssumable > 0 {
		f.roleNotAssumable--
		return nil, &lambdatypes.InvalidParameterValueException{Message: aws.String("The role defined for the function cannot be assumed by Lambda.")}
	}
	if f.takeConflict() {
		return nil, conflictErr()
	}
	name := aws.ToString(in.FunctionName)
	if f.racer != nil {
		f.fn, f.racer = f.racer, nil
	}
	if f.fn != nil {
		return nil, &lambdatypes.ResourceConflictException{Message: aws.String("Function already exist: " + name)}
	}
	f.fn = &lambdatypes.FunctionConfiguration{
		FunctionName:     in.FunctionName,
		FunctionArn:      aws.String("arn:aws:lambda:eu-central-1:" + testAccount + ":function:" + name),
		Role:             in.Role,
		Runtime:          in.Runtime,
		Handler:          in.Handler,
		MemorySize:       in.MemorySize,
		Timeout:          in.Timeout,
		Environment:      &lambdatypes.EnvironmentResponse{Variables: in.Environment.Variables},
		CodeSha256:       aws.String(NewArtifact(in.Code.ZipFile).CodeSha256),
		State:            lambdatypes.StateActive,
		LastUpdateStatus: lambdatypes.LastUpdateStatusSuccessful,
	}
	f.creates++
	return &lambda.CreateFunctionOutput{FunctionArn: f.fn.FunctionArn}, nil
}

func (f *fakeLambda) UpdateFunctionCode(ctx context.Context, in *lambda.UpdateFunctionCodeInput, _ ...func(*lambda.Options)) (*lambda.UpdateFunctionCodeOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.takeConflict() {
		return nil, conflictErr()
	}
	f.fn.CodeSha256 = aws.String(NewArtifact(in.ZipFile).CodeSha256)
	f.codeUpdates++
	return &lambda.UpdateFunctionCodeOutput{}, nil
}

func (f *fakeLambda) UpdateFunctionConfiguration(ctx context.Context, in *lambda.UpdateFunctionConfigurationInput, _ ...func(*lambda.Options)) (*lambda.UpdateFunctionConfigurationOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.takeConflict() {
		return nil, conflictErr()
	}
	f.fn.Role = in.Role
	f.fn.Runtime = in.Runtime
	f.fn.Handler = in.Handler
	f.fn.MemorySize = in.MemorySize
	f.fn.Timeout = in.Timeout
	f.fn.Environment = &lambdatypes.EnvironmentResponse{Variables: in.Environment.Variables}
	f.configUpdates++
	return &lambda.UpdateFunctionConfigurationOutput{}, nil
}

func (f *fakeLambda) GetPolicy(ctx context.Context, in *lambda.GetPolicyInput, _ ...func(*lambda.Options)) (*lambda.GetPolicyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statements) == 0 {
		return nil, &lambdatypes.ResourceNotFoundException{Message: aws.String("The resource you requested does not exist.")}
	}
	type stmt struct {
		Sid string `json:"Sid"`
	}
	doc := struct {
		Version   string `json:"Version"`
		Statement []stmt `json:"Statement"`
	}{Version: "2012-10-17"}
	for _, s := range f.statements {
		doc.Statement = append(doc.Statement, stmt{Sid: s})
	}
	b, _ := json.Marshal(doc)
	return &lambda.GetPolicyOutput{Policy: aws.String(string(b))}, nil
}

func (f *fakeLambda) AddPermission(ctx context.Context, in *lambda.AddPermissionInput, _ ...func(*lambda.Options)) (*lambda.AddPermissionOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.permissionExists || slices.Contains(f.statements, aws.ToString(in.StatementId)) {
		return nil, &lambdatypes.ResourceConflictException{Message: aws.String("The statement id (" + aws.ToString(in.StatementId) + ") provided already exists.")}
	}
	if f.takeConflict() {
		return nil, conflictErr()
	}
	f.statements = append(f.statements, aws.ToString(in.StatementId))
	f.permissionAdds++
	return &lambda.AddPermissionOutput{}, nil
}

type fakeS3 struct {
	mu     sync.Mutex
	config s3types.NotificationConfiguration

	// invalidArgs makes the next puts fail with InvalidArgument.
	invalidArgs int
	// dropWrites acknowledges puts without storing them.
	dropWrites bool

	puts int
}

func (f *fakeS3) GetBucketNotificationConfiguration(ctx context.Context, in *s3.GetBucketNotificationConfigurationInput, _ ...func(*s3.Options)) (*s3.GetBucketNotificationConfigurationOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &s3.GetBucketNotificationConfigurationOutput{
		LambdaFunctionConfigurations: append([]s3types.LambdaFunctionConfiguration(nil), f.config.LambdaFunctionConfigurations...),
		QueueConfigurations:          f.config.QueueConfigurations,
		TopicConfigurations:          f.config.TopicConfigurations,
		EventBridgeConfiguration:     f.config.EventBridgeConfiguration,
	}, nil
}

func (f *fakeS3) PutBucketNotificationConfiguration(ctx context.Context, in *s3.PutBucketNotificationConfigurationInput, _ ...func(*s3.Options)) (*s3.PutBucketNotificationConfigurationOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.invalidArgs > 0 {
		f.invalidArgs--
		return nil, &smithy.GenericAPIError{Code: "InvalidArgument", Message: "Unable to validate the following destination configurations"}
	}
	f.puts++
	if !f.dropWrites {
		f.config = *in.NotificationConfiguration
	}
	return &s3.PutBucketNotificationConfigurationOutput{}, nil
}
