package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// TestDefinitionKey returns the cache key for a test including its answer key.
// Never served to clients.
func (r *CacheKeyStruct) TestDefinitionKey(testID string) string {
	return fmt.Sprintf("test:%s:definition", testID)
}

// TestPayloadKey returns the cache key for the client-facing test view.
func (r *CacheKeyStruct) TestPayloadKey(testID string) string {
	return fmt.Sprintf("test:%s:payload", testID)
}

// DraftAnswersKey returns the cache key for a user's in-progress draft answers.
func (r *CacheKeyStruct) DraftAnswersKey(testID string, userID int) string {
	return fmt.Sprintf("user:%d:test:%s:draft", userID, testID)
}

// TestResultsChannel returns the Redis PubSub channel for a test's attempt events.
func (r *CacheKeyStruct) TestResultsChannel(testID string) string {
	return fmt.Sprintf("test:%s:results", testID)
}

var CacheKey = NewCacheKeyStruct()
