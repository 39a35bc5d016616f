package main

import (
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
)

// Headers set on every forwarded webhook.
const (
	HeaderSignature = "X-Paysim-Signature"
	HeaderEvent     = "X-Paysim-Event"
)

// unwrapBody returns the notification carried by an SQS body. Messages fanned
// out from an SNS topic without raw delivery arrive inside an SNS envelope.
func unwrapBody(body string) []byte {
	var entity events.SNSEntity
	if err := json.Unmarshal([]byte(body), &entity); err == nil && entity.Type == "Notification" && entity.Message != "" {
		return []byte(entity.Message)
	}
	return []byte(body)
}
