package provider

import (
	"context"

	"github.com/truthvision/truthvision/internal/verdict"
)

// FakeProvider returns a canned answer, parsed like a real model reply.
type FakeProvider struct {
	ResponseText string
	Error        error

	Calls    int
	LastMIME string
}

func (f *FakeProvider) Name() string {
	return "fake"
}

func (f *FakeProvider) Classify(ctx context.Context, image []byte, mimeType string) (*verdict.ProviderVerdict, error) {
	f.Calls++
	f.LastMIME = mimeType
	if f.Error != nil {
		return nil, f.Error
	}
	return ParseVerdict(f.ResponseText, f.Name())
}

func NewFake(response string) *FakeProvider {
	return &FakeProvider{ResponseText: response}
}
