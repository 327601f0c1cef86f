//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const binary = "bin/koala"

type Build mg.Namespace

// Downloads the modules and builds the testbed binary into bin/.
func (Build) Engine() error {
	if err := sh.Run("go", "mod", "download"); err != nil {
		return err
	}
	return sh.RunV("go", "build", "-o", binary, ".")
}
