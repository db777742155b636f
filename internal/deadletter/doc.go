// Package deadletter provides the destinations a queue hands exhausted
// messages to: a Pebble-backed Store that can be listed, filtered and
// redriven, forwarders that push to AWS SQS or a Redis list, and Multi,
// which fans a dead letter out to several of them.
//
// All of them implement workqueue.DeadLetterSink.
package deadletter
