//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

type Test mg.Namespace

// Runs every package test. Vulkan code is exercised through a fake driver,
// so no GPU is needed.
func (Test) All() error {
	return sh.RunV("go", "test", "-count=1", "./...")
}

// Runs go vet on the module.
func (Test) Vet() error {
	return sh.RunV("go", "vet", "./...")
}
