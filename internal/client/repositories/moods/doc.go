// Package moods persists the one-per-day mood scores of the local store.
package moods
