/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package hk_test

import (
	"time"

	"github.com/spiderwiz/fabric/hk"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Housekeeper", func() {
	It("fires a registered callback and reschedules it", func() {
		calls := make(chan struct{}, 8)
		hk.Reg("t1", func() time.Duration {
			calls <- struct{}{}
			return 0 // unregister after first fire
		}, time.Millisecond)

		Eventually(calls, 2*time.Second).Should(Receive())
	})

	It("stops firing once unregistered", func() {
		calls := 0
		hk.Reg("t2", func() time.Duration {
			calls++
			return 10 * time.Millisecond
		}, time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		hk.Unreg("t2")
		before := calls
		time.Sleep(30 * time.Millisecond)
		Expect(calls).To(BeNumerically("<=", before+1))
	})
})
