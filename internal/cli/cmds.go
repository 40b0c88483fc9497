package cli

func regCommands() {
	//Chain
	chainCmd.AddCommand(chain_submitCmd)
	chainCmd.AddCommand(chain_combineCmd)
	chainCmd.AddCommand(chain_testCmd)
	chainCmd.AddCommand(chain_infoCmd)
	chainCmd.AddCommand(chain_invalidateCmd)
	chainCmd.AddCommand(chain_reconsiderCmd)
	chainCmd.AddCommand(chain_headerCmd)
	chainCmd.AddCommand(chain_hashCmd)

	//Root
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(chainCmd)
}
