package config

import (
	"fmt"
	"strconv"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserSessionKey holds the JTI of the user's only valid login.
func (r *CacheKeyStruct) UserSessionKey(userID int) string {
	return fmt.Sprintf("login:%d", userID)
}

// ActiveSessionKey is the cross-instance claim on a user's running test.
// Its value is the owning instance ID.
func (r *CacheKeyStruct) ActiveSessionKey(userID int) string {
	return activeSessionKey(strconv.Itoa(userID))
}

// ActiveSessionPattern matches every ActiveSessionKey, for SCAN.
func (r *CacheKeyStruct) ActiveSessionPattern() string {
	return activeSessionKey("*")
}

func activeSessionKey(user string) string {
	return fmt.Sprintf("user:%s:active_session", user)
}

// SessionSnapshotKey stores the latest engine snapshot of a running test.
func (r *CacheKeyStruct) SessionSnapshotKey(userID int) string {
	return fmt.Sprintf("user:%d:session_snapshot", userID)
}

// SessionEventChannel is the Redis PubSub channel for a user's test events.
func (r *CacheKeyStruct) SessionEventChannel(userID int) string {
	return fmt.Sprintf("user:%d:session_events", userID)
}

var CacheKey = NewCacheKeyStruct()
