/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package nats provides the client used to connect to Nats JetStream.
//
// Function NewNATSClient(ctx context.Context, url string, natsOptions ...nats.Option) connects to the given url with
// auto reconnect enabled, credentials and TLS are passed in as nats options.
//
// Function NewTestClient(t *testing.T, url string) returns a client with
// default implementation, which relies on the input url and will be only used for testing.

package nats
