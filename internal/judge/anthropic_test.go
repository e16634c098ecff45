package judge

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cluegrid/cluegrid/pkg/anthropic"
)

type fakeClient struct {
	resp    *anthropic.MessageResponse
	err     error
	lastReq anthropic.MessageRequest
}

func (f *fakeClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.lastReq = req
	return f.resp, f.err
}

func textResponse(body string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: body}},
	}
}

func TestAnthropicJudge_Verdict(t *testing.T) {
	client := &fakeClient{resp: textResponse(`{"overturn": true, "final_correct": true, "reason_code": "last_name_match", "match_type": "last_name", "same_entity_likelihood": 0.95, "confidence": 0.91, "reason": "Last name matches."}`)}
	j := NewAnthropicJudge(client, "test-model", 0, 0)

	verdict, failure := j.Judge(context.Background(), Request{
		ClueText: "He delivered the Gettysburg Address",
		Expected: "Abraham Lincoln",
		Response: "Lincoln",
	})
	require.Nil(t, failure)
	require.NotNil(t, verdict)

	assert.True(t, verdict.Correct)
	assert.Equal(t, ReasonLastNameMatch, verdict.ReasonCode)
	assert.Equal(t, "test-model", client.lastReq.Model)
	assert.Contains(t, client.lastReq.Messages[0].Content, "Abraham Lincoln")
	require.NotNil(t, client.lastReq.Temperature)
	assert.Zero(t, *client.lastReq.Temperature)
}

func TestAnthropicJudge_TransportFailure(t *testing.T) {
	client := &fakeClient{err: eris.New("connection refused")}
	j := NewAnthropicJudge(client, "test-model", 0, 0)

	verdict, failure := j.Judge(context.Background(), Request{Response: "Lincoln"})
	assert.Nil(t, verdict)
	require.NotNil(t, failure)
	assert.Equal(t, "transport_error", failure.ErrorType)
}

func TestAnthropicJudge_TimeoutClassified(t *testing.T) {
	client := &fakeClient{err: context.DeadlineExceeded}
	j := NewAnthropicJudge(client, "test-model", 0, 0)

	_, failure := j.Judge(context.Background(), Request{Response: "Lincoln"})
	require.NotNil(t, failure)
	assert.Equal(t, "timeout", failure.ErrorType)
}

func TestAnthropicJudge_UnparseableOutput(t *testing.T) {
	client := &fakeClient{resp: textResponse("I think the answer is probably right.")}
	j := NewAnthropicJudge(client, "test-model", 0, 0)

	verdict, failure := j.Judge(context.Background(), Request{Response: "Lincoln"})
	assert.Nil(t, verdict)
	require.NotNil(t, failure)
	assert.Equal(t, "parse_error", failure.ErrorType)
}

func TestAnthropicJudge_JustificationTruncated(t *testing.T) {
	client := &fakeClient{resp: textResponse(`{"overturn": false, "final_correct": false, "reason_code": "no_match", "match_type": "no_match", "same_entity_likelihood": 0.1, "confidence": 0.9, "reason": "no"}`)}
	j := NewAnthropicJudge(client, "test-model", 0, 0)

	long := make([]byte, MaxJustificationChars+100)
	for i := range long {
		long[i] = 'z'
	}
	_, failure := j.Judge(context.Background(), Request{Response: "Lincoln", Justification: string(long)})
	require.Nil(t, failure)

	prompt := client.lastReq.Messages[0].Content
	assert.NotContains(t, prompt, string(long))
}
