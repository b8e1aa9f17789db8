package rest

import (
	"encoding/xml"
	"fmt"

	"github.com/google/uuid"
)

// Provider error codes/messages echoed in structured error bodies.
const (
	codeNoSuchBucket    = "NoSuchBucket"
	messageNoSuchBucket = "The specified blob does not exist"

	codeInvalidBucketName    = "InvalidBucketName"
	messageInvalidBucketName = "The specified bucket is not valid."
)

// ErrorRenderer renders a structured error body for the given provider error code/message. The blob storage surface
// uses the XML renderer below by default; the surrounding framework may supply its own.
type ErrorRenderer interface {
	Render(code, message, bucketName string) []byte
}

// errorBody is the provider-shaped XML error document.
type errorBody struct {
	XMLName    xml.Name `xml:"Error"`
	Code       string   `xml:"Code"`
	Message    string   `xml:"Message"`
	BucketName string   `xml:"BucketName,omitempty"`
	RequestID  string   `xml:"RequestID"`
}

// XMLErrorRenderer renders provider-shaped XML error bodies, each carrying a fresh request id.
type XMLErrorRenderer struct{}

var _ ErrorRenderer = (*XMLErrorRenderer)(nil)

// Render returns the XML document for the given code/message, echoing the offending bucket/key name when given.
func (x *XMLErrorRenderer) Render(code, message, bucketName string) []byte {
	body, err := xml.Marshal(errorBody{
		Code:       code,
		Message:    message,
		BucketName: bucketName,
		RequestID:  uuid.NewString(),
	})
	// Marshaling a plain struct of strings can't fail, but never let an error path panic the dispatcher.
	if err != nil {
		return []byte(fmt.Sprintf("%s: %s", code, message))
	}

	return body
}
