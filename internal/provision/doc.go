// SPDX-License-Identifier: MPL-2.0

// Package provision takes a trondev workspace from nothing to ready to launch.
//
// A Provisioner runs a fixed sequence of steps against a workspace:
//
//	p, err := provision.New(ws, provision.Dependencies{...})
//	err = p.Preflight(ctx)                  // JDK 1.8 present
//	err = p.Prepare(ctx, reset)             // nodes/{full-node,solidity-node,event-node,grid-api}
//	p.FetchSource(ctx)                      // event-node and grid-api git clones
//	res, err := p.FetchJars(ctx, "latest")  // release jars into the workspace root
//	placed, err := p.PlaceJars(res)         // one-shot move into node directories
//	err = p.PropagateLogConfig()            // logback.xml into the java node directories
//
// Version requests resolve through a three-bucket Policy: "latest", exactly the
// legacy release (which publishes java-tron.jar instead of FullNode.jar) and a
// ranged bucket from the minimum ranged release up to latest. Versions compare
// numerically, not as strings.
//
// Errors come in tiers. IsFatal reports JDK and unsupported-version failures,
// which callers treat as terminal. Download and placement failures abort the
// step and are returned as *issue.ActionableError. Existing directories,
// failed clones and failed removals are reported as warnings only.
package provision
