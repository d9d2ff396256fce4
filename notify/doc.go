// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package notify delivers fire-and-forget user notifications.

The service wires a Multi of a Logger and a Feed; GET /notifications
reads the Feed. Operation status follows submitting, then confirmed or
failed, with kind-specific events (poll_settled, poll_won,
reward_claimed) on success.
*/
package notify
