package rest

import (
	"encoding/xml"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestXMLErrorRendererRender(t *testing.T) {
	body := (&XMLErrorRenderer{}).Render(codeNoSuchBucket, messageNoSuchBucket, "nested/blob.txt")

	var unmarshalled errorBody

	require.NoError(t, xml.Unmarshal(body, &unmarshalled))
	require.Equal(t, codeNoSuchBucket, unmarshalled.Code)
	require.Equal(t, messageNoSuchBucket, unmarshalled.Message)
	require.Equal(t, "nested/blob.txt", unmarshalled.BucketName)

	// Every rendered error carries a fresh request id.
	_, err := uuid.Parse(unmarshalled.RequestID)
	require.NoError(t, err)
}

func TestXMLErrorRendererRenderOmitsEmptyBucketName(t *testing.T) {
	body := (&XMLErrorRenderer{}).Render(codeInvalidBucketName, messageInvalidBucketName, "")

	require.NotContains(t, string(body), "<BucketName>")
}
