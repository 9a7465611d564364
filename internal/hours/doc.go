// Package hours defines the domain types shared by the review-hours pipeline:
// metric snapshots, the positional extractor for the rendered dashboard, the
// reply text sent back to chat users, and the interfaces implemented by the
// renderer, notifier, and snapshot store adapters.
package hours
