package decoder

// Event ABIs of the tracked contracts.
const (
	stakeABI = `[{
		"anonymous": false,
		"type": "event",
		"name": "StakeBTC2JoinStakePlan",
		"inputs": [
			{"indexed": true,  "name": "stakeIndex",         "type": "uint256"},
			{"indexed": true,  "name": "planId",             "type": "uint256"},
			{"indexed": true,  "name": "user",               "type": "address"},
			{"indexed": false, "name": "btcContractAddress", "type": "address"},
			{"indexed": false, "name": "stakeAmount",        "type": "uint256"},
			{"indexed": false, "name": "stBTCAmount",        "type": "uint256"}
		]
	}]`

	swapABI = `[{
		"anonymous": false,
		"type": "event",
		"name": "Swap",
		"inputs": [
			{"indexed": true,  "name": "sender",             "type": "address"},
			{"indexed": true,  "name": "recipient",          "type": "address"},
			{"indexed": false, "name": "amount0",            "type": "int256"},
			{"indexed": false, "name": "amount1",            "type": "int256"},
			{"indexed": false, "name": "sqrtPriceX96",       "type": "uint160"},
			{"indexed": false, "name": "liquidity",          "type": "uint128"},
			{"indexed": false, "name": "tick",               "type": "int24"},
			{"indexed": false, "name": "protocolFeesToken0", "type": "uint128"},
			{"indexed": false, "name": "protocolFeesToken1", "type": "uint128"}
		]
	}]`

	depositABI = `[{
		"anonymous": false,
		"type": "event",
		"name": "Deposit",
		"inputs": [
			{"indexed": false, "name": "staker",   "type": "address"},
			{"indexed": false, "name": "token",    "type": "address"},
			{"indexed": false, "name": "strategy", "type": "address"},
			{"indexed": false, "name": "shares",   "type": "uint256"}
		]
	}]`
)
