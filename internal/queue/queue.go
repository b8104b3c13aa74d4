// Package queue wires the two durable job queues over RabbitMQ. "run"
// jobs flow through an RPC pattern (direct reply-to) so the producer can
// answer synchronously; "submit" jobs are fire-and-forget.
package queue

const (
	ExchangeName = "arbiter.direct"
	exchangeType = "direct"

	// RunQueue carries ephemeral run jobs; results return via reply-to.
	RunQueue      = "run_jobs"
	RunRoutingKey = "run"

	// SubmitQueue carries graded submit jobs.
	SubmitQueue      = "submit_jobs"
	SubmitRoutingKey = "submit"

	dlxName      = "arbiter.dlx"
	dlqName      = "dead_letter_queue"
	replyToQueue = "amq.rabbitmq.reply-to"
)
