// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SCSI / ATA translation reference implementation.
//
package main

import "github.com/dswarbrick/passthru/cmd/satctl/cmd"

func main() {
	cmd.Execute()
}
