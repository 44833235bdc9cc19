/*
Package randx provides functions for generating cryptographically secure random values and unique identifiers.

It is used for request ids on outgoing REST calls, connection ids on realtime sessions,
and the random jitter added to reconnect delays.
*/
package randx

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// ConnectionIDLength is the length of the Base62 part of a connection id.
	ConnectionIDLength = 8
)

// RequestID generates a UUID v4 string used as the X-Request-ID of a REST call.
func RequestID() string {
	return uuid.New().String()
}

// ConnectionID generates a short "conn_" prefixed Base62 id used to tag the logs of one
// realtime connection. It falls back to a UUID if the random source fails.
func ConnectionID() string {
	result := make([]byte, ConnectionIDLength)

	for i := range ConnectionIDLength {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "conn_" + uuid.New().String()
		}
		result[i] = Base62Chars[num.Int64()]
	}

	return "conn_" + string(result)
}

// Jitter returns a uniformly random duration in [0, limit). A non-positive limit yields 0.
func Jitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}

	num, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return 0
	}

	return time.Duration(num.Int64())
}
