package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-calendar/internal/model"
)

// StartExecutionAPI は sfn.Client のうち通知に使う部分です
type StartExecutionAPI interface {
	StartExecution(ctx context.Context, params *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error)
}

// StepFunctionsChannel は通知ワークフローを Step Functions で起動します
type StepFunctionsChannel struct {
	client          StartExecutionAPI
	stateMachineARN string
}

// NewStepFunctionsChannel は新しいStepFunctionsChannelを作成します
func NewStepFunctionsChannel(client StartExecutionAPI, stateMachineARN string) *StepFunctionsChannel {
	return &StepFunctionsChannel{client: client, stateMachineARN: stateMachineARN}
}

func (c *StepFunctionsChannel) Name() string { return "stepfunctions" }

type executionInput struct {
	Notifications []model.Notification `json:"notifications"`
}

func (c *StepFunctionsChannel) Deliver(ctx context.Context, _ model.Developer, n model.Notification) error {
	ctx, seg := xray.BeginSubsegment(ctx, "StepFunctionsChannel.Deliver")
	defer seg.Close(nil)

	input, err := json.Marshal(executionInput{Notifications: []model.Notification{n}})
	if err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to marshal notifications: %w", err)
	}

	out, err := c.client.StartExecution(ctx, &sfn.StartExecutionInput{
		StateMachineArn: aws.String(c.stateMachineARN),
		Input:           aws.String(string(input)),
	})
	if err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to start execution: %w", err)
	}
	if seg != nil && out.ExecutionArn != nil {
		_ = seg.AddMetadata("execution_arn", *out.ExecutionArn)
	}
	return nil
}
