// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"encoding/json"
	"flag"
	"fmt"

	"github.com/devblok/vkswap/device"
	"github.com/devblok/vkswap/gfx/vkr"
	log "github.com/sirupsen/logrus"
)

var (
	debug  = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
	indent = flag.Bool("i", false, "Indent the output")
)

func main() {
	flag.Parse()

	instance, err := vkr.NewInstance(vkr.DefaultApplicationInfo, nil, vkr.InstanceConfig{DebugMode: *debug})
	if err != nil {
		log.WithError(err).Fatal("Failed to create Vulkan instance")
	}
	defer instance.Destroy()

	infos := device.Inventory(instance.PhysicalDevices())
	for _, info := range infos {
		if ok, reason := device.Suitable(info, []string{vkr.SwapchainExtension}); !ok {
			log.WithField("device", info.Name).Warn("Not suitable for presenting: " + reason)
		}
	}

	var bytes []byte
	if *indent {
		bytes, err = json.MarshalIndent(infos, "", "  ")
	} else {
		bytes, err = json.Marshal(infos)
	}
	if err != nil {
		log.WithError(err).Fatal("Failed to encode device info")
	}
	fmt.Printf("%s\n", bytes)
}
